package elevation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tkrajina/go-elevations/geoelevations"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

// SrtmService samples SRTM tiles for every line vertex.
type SrtmService struct {
	srtm   *geoelevations.Srtm
	client *http.Client
}

func NewSrtmService(client *http.Client) (*SrtmService, error) {
	srtm, err := geoelevations.NewSrtm(client)
	if err != nil {
		return nil, fmt.Errorf("creating srtm client: %w", err)
	}
	return &SrtmService{srtm: srtm, client: client}, nil
}

func (s *SrtmService) AnnotateLine(ctx context.Context, line []datastructure.Coordinate) ([]datastructure.Coordinate, Profile, error) {
	annotated := make([]datastructure.Coordinate, len(line))
	for i, c := range line {
		select {
		case <-ctx.Done():
			return nil, Profile{}, ctx.Err()
		default:
		}

		ele, err := s.srtm.GetElevation(s.client, c.Lat, c.Lon)
		if err != nil {
			return nil, Profile{}, fmt.Errorf("%w: (%f, %f): %v", ErrNoElevationData, c.Lat, c.Lon, err)
		}
		annotated[i] = datastructure.NewCoordinate3(c.Lat, c.Lon, ele)
	}
	return annotated, ComputeProfile(annotated), nil
}

// PlaneService deterministic synthetic elevation, ele = base + lat*latGrad
// + lon*lonGrad. used in tests and offline runs without SRTM coverage.
type PlaneService struct {
	Base    float64
	LatGrad float64
	LonGrad float64
}

func NewPlaneService(base, latGrad, lonGrad float64) *PlaneService {
	return &PlaneService{Base: base, LatGrad: latGrad, LonGrad: lonGrad}
}

func (p *PlaneService) AnnotateLine(_ context.Context, line []datastructure.Coordinate) ([]datastructure.Coordinate, Profile, error) {
	annotated := make([]datastructure.Coordinate, len(line))
	for i, c := range line {
		annotated[i] = datastructure.NewCoordinate3(c.Lat, c.Lon,
			p.Base+c.Lat*p.LatGrad+c.Lon*p.LonGrad)
	}
	return annotated, ComputeProfile(annotated), nil
}
