package datastructure

import (
	"github.com/google/uuid"
)

type VertexClass int

const (
	// degree 0, invalid until repaired
	ClassOrphan VertexClass = iota
	// degree 1
	ClassEndpoint
	// degree 2, pass-through
	ClassConnector
	// degree >= 3
	ClassIntersection
)

func ClassifyDegree(degree int32) VertexClass {
	switch {
	case degree == 0:
		return ClassOrphan
	case degree == 1:
		return ClassEndpoint
	case degree == 2:
		return ClassConnector
	default:
		return ClassIntersection
	}
}

type Vertex struct {
	ID    int32
	Coord Coordinate

	// derived aggregate, only valid right after RecomputeDegrees
	Degree int32
	Class  VertexClass

	// vertex sits on the region bounding box. unresolved degree-0
	// vertices here are usually legitimate dead-ends cut by the bbox.
	OnBoundary bool

	Removed bool
}

type Edge struct {
	ID           int32
	FromVertexID int32
	ToVertexID   int32

	TrailID   uuid.UUID
	Name      string
	TrailType string
	Source    string

	// must terminate exactly at the from/to vertex coordinates after
	// the welding pass
	Geometry []Coordinate

	LengthKm float64
	GainM    float64
	LossM    float64

	// both endpoints clustered to the same vertex. kept for display,
	// excluded from search adjacency.
	SelfLoop bool

	Removed bool
}

// Graph is the single shared mutable resource of a staging workspace.
// mutation is strictly serialized by the pipeline; searches only read.
type Graph struct {
	Workspace string

	Vertices []Vertex
	Edges    []Edge

	// adjacency[v] = edge ids incident to vertex v. rebuilt by
	// RecomputeDegrees, stale after any structural change.
	adjacency map[int32][]int32
}

func NewGraph(workspace string) *Graph {
	return &Graph{
		Workspace: workspace,
		Vertices:  make([]Vertex, 0),
		Edges:     make([]Edge, 0),
		adjacency: make(map[int32][]int32),
	}
}

func (g *Graph) AddVertex(coord Coordinate) *Vertex {
	id := int32(len(g.Vertices))
	g.Vertices = append(g.Vertices, Vertex{ID: id, Coord: coord})
	return &g.Vertices[id]
}

func (g *Graph) AddEdge(e Edge) *Edge {
	e.ID = int32(len(g.Edges))
	e.SelfLoop = e.FromVertexID == e.ToVertexID
	g.Edges = append(g.Edges, e)
	return &g.Edges[e.ID]
}

func (g *Graph) Vertex(id int32) *Vertex {
	if id < 0 || int(id) >= len(g.Vertices) || g.Vertices[id].Removed {
		return nil
	}
	return &g.Vertices[id]
}

func (g *Graph) Edge(id int32) *Edge {
	if id < 0 || int(id) >= len(g.Edges) || g.Edges[id].Removed {
		return nil
	}
	return &g.Edges[id]
}

func (g *Graph) RemoveEdge(id int32) {
	if int(id) < len(g.Edges) {
		g.Edges[id].Removed = true
	}
}

func (g *Graph) RemoveVertex(id int32) {
	if int(id) < len(g.Vertices) {
		g.Vertices[id].Removed = true
	}
}

// RemapEdgeVertices rewrites every live edge referencing oldID to newID.
// used by vertex welding (lowest id wins).
func (g *Graph) RemapEdgeVertices(oldID, newID int32) int {
	remapped := 0
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Removed {
			continue
		}
		changed := false
		if e.FromVertexID == oldID {
			e.FromVertexID = newID
			changed = true
		}
		if e.ToVertexID == oldID {
			e.ToVertexID = newID
			changed = true
		}
		if changed {
			e.SelfLoop = e.FromVertexID == e.ToVertexID
			remapped++
		}
	}
	return remapped
}

// RecomputeDegrees rebuilds the adjacency index and the per-vertex degree
// from the live edge set. degree is never maintained as a live counter.
func (g *Graph) RecomputeDegrees() {
	g.adjacency = make(map[int32][]int32, len(g.Vertices))
	for i := range g.Vertices {
		g.Vertices[i].Degree = 0
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Removed {
			continue
		}
		g.adjacency[e.FromVertexID] = append(g.adjacency[e.FromVertexID], e.ID)
		g.Vertices[e.FromVertexID].Degree++
		if e.SelfLoop {
			continue
		}
		g.adjacency[e.ToVertexID] = append(g.adjacency[e.ToVertexID], e.ID)
		g.Vertices[e.ToVertexID].Degree++
	}
	for i := range g.Vertices {
		v := &g.Vertices[i]
		if v.Removed {
			continue
		}
		v.Class = ClassifyDegree(v.Degree)
	}
}

// AdjacentEdges returns the incident edge ids of a vertex as of the last
// RecomputeDegrees call.
func (g *Graph) AdjacentEdges(vertexID int32) []int32 {
	return g.adjacency[vertexID]
}

// OtherEnd returns the vertex on the far side of edge e seen from vertexID.
func (e *Edge) OtherEnd(vertexID int32) int32 {
	if e.FromVertexID == vertexID {
		return e.ToVertexID
	}
	return e.FromVertexID
}

func (g *Graph) VertexCount() int {
	n := 0
	for i := range g.Vertices {
		if !g.Vertices[i].Removed {
			n++
		}
	}
	return n
}

func (g *Graph) EdgeCount() int {
	n := 0
	for i := range g.Edges {
		if !g.Edges[i].Removed {
			n++
		}
	}
	return n
}

func (g *Graph) LiveEdges() []*Edge {
	edges := make([]*Edge, 0, len(g.Edges))
	for i := range g.Edges {
		if !g.Edges[i].Removed {
			edges = append(edges, &g.Edges[i])
		}
	}
	return edges
}

func (g *Graph) LiveVertices() []*Vertex {
	vertices := make([]*Vertex, 0, len(g.Vertices))
	for i := range g.Vertices {
		if !g.Vertices[i].Removed {
			vertices = append(vertices, &g.Vertices[i])
		}
	}
	return vertices
}
