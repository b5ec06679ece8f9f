package datastructure

import (
	"github.com/dhconnelly/rtreego"
)

// degenerate (point) bounds need a positive extent for the r-tree
const minRectExtent = 1e-9

type spatialEntry struct {
	id   int32
	rect rtreego.Rect
}

func (e *spatialEntry) Bounds() rtreego.Rect {
	return e.rect
}

// SpatialIndex 2D r-tree over (lat, lon) bounds, keyed by int32 ids.
type SpatialIndex struct {
	tree *rtreego.Rtree
}

func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{tree: rtreego.NewTree(2, 25, 50)}
}

func rectFromBound(b Bound) rtreego.Rect {
	latExtent := b.MaxLat - b.MinLat
	if latExtent < minRectExtent {
		latExtent = minRectExtent
	}
	lonExtent := b.MaxLon - b.MinLon
	if lonExtent < minRectExtent {
		lonExtent = minRectExtent
	}
	rect, err := rtreego.NewRect(rtreego.Point{b.MinLat, b.MinLon}, []float64{latExtent, lonExtent})
	if err != nil {
		// only reachable with NaN bounds
		panic(err)
	}
	return rect
}

func (s *SpatialIndex) Insert(id int32, b Bound) {
	s.tree.Insert(&spatialEntry{id: id, rect: rectFromBound(b)})
}

func (s *SpatialIndex) Delete(id int32, b Bound) {
	s.tree.DeleteWithComparator(&spatialEntry{id: id, rect: rectFromBound(b)},
		func(obj1, obj2 rtreego.Spatial) bool {
			e1, ok1 := obj1.(*spatialEntry)
			e2, ok2 := obj2.(*spatialEntry)
			return ok1 && ok2 && e1.id == e2.id
		})
}

// Search ids of entries whose bounds intersect b.
func (s *SpatialIndex) Search(b Bound) []int32 {
	matches := s.tree.SearchIntersect(rectFromBound(b))
	ids := make([]int32, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.(*spatialEntry).id)
	}
	return ids
}

func (s *SpatialIndex) Size() int {
	return s.tree.Size()
}
