// Package connectivity is read-only diagnostics over a graph: component
// counts, isolation detection and the advisory score that gates route
// search for a region. it never mutates the graph.
package connectivity

import (
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

type Summary struct {
	Workspace string

	Vertices int
	Edges    int

	Components     int
	ComponentSizes []int
	LargestSize    int

	IsolatedVertices int
	IsolatedTrails   int
	TrailCount       int

	// largest component's trail share. advisory, consumed by operators
	// and by the search gate.
	Score float64
}

// SearchReady reports whether the graph is connected enough for route
// search to produce meaningful candidates.
func (s Summary) SearchReady(minScore float64) bool {
	return s.Edges > 0 && s.Score >= minScore
}

// Analyze walks the live vertex and edge tables without touching them.
// degrees are counted locally, not read from the possibly stale cached
// field.
func Analyze(g *datastructure.Graph) Summary {
	summary := Summary{
		Workspace: g.Workspace,
		Vertices:  g.VertexCount(),
		Edges:     g.EdgeCount(),
	}

	parent := make(map[int32]int32)
	var find func(x int32) int32
	find = func(x int32) int32 {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	degree := make(map[int32]int)
	for _, v := range g.LiveVertices() {
		parent[v.ID] = v.ID
	}
	for _, e := range g.LiveEdges() {
		degree[e.FromVertexID]++
		if e.SelfLoop {
			continue
		}
		degree[e.ToVertexID]++
		ra, rb := find(e.FromVertexID), find(e.ToVertexID)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, v := range g.LiveVertices() {
		if degree[v.ID] == 0 {
			summary.IsolatedVertices++
		}
	}

	// trails per component, and which trails share a vertex with a
	// different trail
	componentTrails := make(map[int32]map[uuid.UUID]bool)
	vertexTrails := make(map[int32]map[uuid.UUID]bool)
	allTrails := make(map[uuid.UUID]bool)
	for _, e := range g.LiveEdges() {
		root := find(e.FromVertexID)
		if componentTrails[root] == nil {
			componentTrails[root] = make(map[uuid.UUID]bool)
		}
		componentTrails[root][e.TrailID] = true
		allTrails[e.TrailID] = true
		for _, vid := range []int32{e.FromVertexID, e.ToVertexID} {
			if vertexTrails[vid] == nil {
				vertexTrails[vid] = make(map[uuid.UUID]bool)
			}
			vertexTrails[vid][e.TrailID] = true
		}
	}
	summary.TrailCount = len(allTrails)

	shared := make(map[uuid.UUID]bool)
	for _, trails := range vertexTrails {
		if len(trails) < 2 {
			continue
		}
		for id := range trails {
			shared[id] = true
		}
	}
	for id := range allTrails {
		if !shared[id] {
			summary.IsolatedTrails++
		}
	}

	componentVertices := make(map[int32]int)
	for _, v := range g.LiveVertices() {
		componentVertices[find(v.ID)]++
	}
	for _, n := range componentVertices {
		summary.ComponentSizes = append(summary.ComponentSizes, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(summary.ComponentSizes)))
	summary.Components = len(summary.ComponentSizes)
	if summary.Components > 0 {
		summary.LargestSize = summary.ComponentSizes[0]
	}

	if summary.TrailCount > 0 {
		best := 0
		for _, trails := range componentTrails {
			if len(trails) > best {
				best = len(trails)
			}
		}
		summary.Score = float64(best) / float64(summary.TrailCount)
	}

	log.Printf("connectivity[%s]: %d vertices / %d edges / %d components / %d isolated vertices / %d isolated trails / score %.3f",
		summary.Workspace, summary.Vertices, summary.Edges, summary.Components,
		summary.IsolatedVertices, summary.IsolatedTrails, summary.Score)
	return summary
}
