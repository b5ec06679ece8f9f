package search

import (
	"math"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

// path is one directed traversal through the graph. nodes has one more
// entry than edges.
type path struct {
	nodes  []int32
	edges  []int32
	distKm float64
}

func (p path) lastNode() int32 {
	return p.nodes[len(p.nodes)-1]
}

// searchTree is the settled output of one Dijkstra run, enough to
// reconstruct the shortest path to any reached node.
type searchTree struct {
	source   int32
	distKm   map[int32]float64
	prevEdge map[int32]int32
	prevNode map[int32]int32
}

// dijkstraFrom runs plain Dijkstra (cost = edge length) from source over
// the live adjacency, stopping beyond maxDistKm when positive. self-loop
// edges never shorten a path and are skipped. exploration is capped so a
// pathological graph cannot hang a query.
func dijkstraFrom(g *datastructure.Graph, source int32, maxDistKm float64,
	maxExplored int, excludedEdges, excludedNodes map[int32]bool) searchTree {

	tree := searchTree{
		source:   source,
		distKm:   map[int32]float64{source: 0},
		prevEdge: make(map[int32]int32),
		prevNode: make(map[int32]int32),
	}

	pq := datastructure.NewMinHeap[int32]()
	pq.Insert(datastructure.PriorityQueueNode[int32]{Rank: 0, Item: source})
	settled := make(map[int32]bool)
	explored := 0

	for pq.Size() > 0 {
		node, err := pq.ExtractMin()
		if err != nil {
			break
		}
		at := node.Item
		if settled[at] {
			continue
		}
		settled[at] = true
		if explored++; explored > maxExplored {
			break
		}
		atDist := tree.distKm[at]
		if maxDistKm > 0 && atDist > maxDistKm {
			continue
		}

		for _, edgeID := range g.AdjacentEdges(at) {
			e := g.Edge(edgeID)
			if e == nil || e.SelfLoop || excludedEdges[edgeID] {
				continue
			}
			next := e.OtherEnd(at)
			if settled[next] || excludedNodes[next] {
				continue
			}
			candidate := atDist + e.LengthKm
			known, seen := tree.distKm[next]
			if seen && candidate >= known {
				continue
			}
			tree.distKm[next] = candidate
			tree.prevEdge[next] = edgeID
			tree.prevNode[next] = at
			if pq.Contains(next) {
				pq.DecreaseKey(datastructure.PriorityQueueNode[int32]{Rank: candidate, Item: next})
			} else {
				pq.Insert(datastructure.PriorityQueueNode[int32]{Rank: candidate, Item: next})
			}
		}
	}
	return tree
}

// pathTo rebuilds the shortest path from the tree's source to target.
func (t searchTree) pathTo(target int32) (path, bool) {
	dist, ok := t.distKm[target]
	if !ok {
		return path{}, false
	}
	nodes := []int32{target}
	edges := []int32{}
	for at := target; at != t.source; {
		edgeID, ok := t.prevEdge[at]
		if !ok {
			return path{}, false
		}
		edges = append(edges, edgeID)
		at = t.prevNode[at]
		nodes = append(nodes, at)
	}
	reverseInt32(nodes)
	reverseInt32(edges)
	return path{nodes: nodes, edges: edges, distKm: dist}, true
}

// shortestPath is the single-pair form used by the KSP spur loop.
func shortestPath(g *datastructure.Graph, from, to int32, maxExplored int,
	excludedEdges, excludedNodes map[int32]bool) (path, bool) {

	tree := dijkstraFrom(g, from, math.Inf(1), maxExplored, excludedEdges, excludedNodes)
	return tree.pathTo(to)
}

func reverseInt32(s []int32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
