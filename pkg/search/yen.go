package search

import (
	"sort"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

// kShortestPaths is Yen's algorithm over the live graph. returns up to k
// loopless paths from source to target, shortest first. the spur loop
// inherits the exploration cap of the underlying Dijkstra runs, so the
// enumeration always terminates.
func kShortestPaths(g *datastructure.Graph, source, target int32, k, maxExplored int) []path {
	if k <= 0 {
		return nil
	}
	first, ok := shortestPath(g, source, target, maxExplored, nil, nil)
	if !ok {
		return nil
	}

	accepted := []path{first}
	candidates := make([]path, 0)

	for len(accepted) < k {
		prev := accepted[len(accepted)-1]

		for spurIdx := 0; spurIdx < len(prev.nodes)-1; spurIdx++ {
			spurNode := prev.nodes[spurIdx]
			rootNodes := prev.nodes[:spurIdx+1]
			rootEdges := prev.edges[:spurIdx]

			// edges that would recreate an already accepted path
			// sharing this root are banned for the spur search
			excludedEdges := make(map[int32]bool)
			for _, p := range accepted {
				if len(p.nodes) > spurIdx && sameNodes(p.nodes[:spurIdx+1], rootNodes) {
					if len(p.edges) > spurIdx {
						excludedEdges[p.edges[spurIdx]] = true
					}
				}
			}
			// root nodes except the spur node are off limits, keeps
			// the result loopless
			excludedNodes := make(map[int32]bool)
			for _, n := range rootNodes[:spurIdx] {
				excludedNodes[n] = true
			}

			spur, ok := shortestPath(g, spurNode, target, maxExplored, excludedEdges, excludedNodes)
			if !ok {
				continue
			}

			total := joinPaths(g, rootNodes, rootEdges, spur)
			if containsPath(accepted, total) || containsPath(candidates, total) {
				continue
			}
			candidates = append(candidates, total)
		}

		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].distKm != candidates[j].distKm {
				return candidates[i].distKm < candidates[j].distKm
			}
			return lessNodes(candidates[i].nodes, candidates[j].nodes)
		})
		accepted = append(accepted, candidates[0])
		candidates = candidates[1:]
	}
	return accepted
}

func joinPaths(g *datastructure.Graph, rootNodes, rootEdges []int32, spur path) path {
	nodes := make([]int32, 0, len(rootNodes)+len(spur.nodes)-1)
	nodes = append(nodes, rootNodes...)
	nodes = append(nodes, spur.nodes[1:]...)

	edges := make([]int32, 0, len(rootEdges)+len(spur.edges))
	edges = append(edges, rootEdges...)
	edges = append(edges, spur.edges...)

	dist := spur.distKm
	for _, edgeID := range rootEdges {
		if e := g.Edge(edgeID); e != nil {
			dist += e.LengthKm
		}
	}
	return path{nodes: nodes, edges: edges, distKm: dist}
}

func sameNodes(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lessNodes(a, b []int32) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func containsPath(paths []path, p path) bool {
	for i := range paths {
		if sameNodes(paths[i].nodes, p.nodes) {
			return true
		}
	}
	return false
}
