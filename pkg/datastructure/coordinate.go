package datastructure

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Ele float64 `json:"ele"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

func NewCoordinate3(lat, lon, ele float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
		Ele: ele,
	}
}

// SamePosition ignores elevation. exact float equality, used for the
// coordinate-welding invariant (welded endpoints must match vertex
// coordinates exactly, not just within tolerance).
func (c Coordinate) SamePosition(o Coordinate) bool {
	return c.Lat == o.Lat && c.Lon == o.Lon
}

type Bound struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

func NewBound(minLat, minLon, maxLat, maxLon float64) Bound {
	return Bound{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

func BoundFromLine(line []Coordinate) Bound {
	b := Bound{MinLat: 91, MinLon: 181, MaxLat: -91, MaxLon: -181}
	for _, c := range line {
		if c.Lat < b.MinLat {
			b.MinLat = c.Lat
		}
		if c.Lat > b.MaxLat {
			b.MaxLat = c.Lat
		}
		if c.Lon < b.MinLon {
			b.MinLon = c.Lon
		}
		if c.Lon > b.MaxLon {
			b.MaxLon = c.Lon
		}
	}
	return b
}

// Expand grows the bound by delta degrees on every side.
func (b Bound) Expand(delta float64) Bound {
	return Bound{
		MinLat: b.MinLat - delta,
		MinLon: b.MinLon - delta,
		MaxLat: b.MaxLat + delta,
		MaxLon: b.MaxLon + delta,
	}
}

func (b Bound) Overlaps(o Bound) bool {
	if b.MaxLat < o.MinLat || o.MaxLat < b.MinLat {
		return false
	}
	if b.MaxLon < o.MinLon || o.MaxLon < b.MinLon {
		return false
	}
	return true
}

func (b Bound) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}
