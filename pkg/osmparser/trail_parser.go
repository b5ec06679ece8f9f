// Package osmparser ingests trail geometries from an openstreetmap
// .osm.pbf extract. two sequential scans: ways first to learn which
// nodes matter, then nodes for their coordinates.
package osmparser

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	ansi "github.com/k0kubun/go-ansi"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/schollz/progressbar/v3"
	"github.com/uber/h3-go/v4"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/geo"
)

// highway values accepted as trails, mapped to our classification.
var trailHighwayType = map[string]string{
	"path":      datastructure.TrailTypeSingletrack,
	"footway":   datastructure.TrailTypeFootpath,
	"steps":     datastructure.TrailTypeFootpath,
	"bridleway": datastructure.TrailTypeFootpath,
	"track":     datastructure.TrailTypeDoubletrack,
	"cycleway":  datastructure.TrailTypeDoubletrack,
}

var pavedSurfaces = map[string]bool{
	"asphalt":  true,
	"concrete": true,
	"paved":    true,
}

type nodeCoord struct {
	lat float64
	lon float64
}

type TrailParser struct {
	cfg config.Config

	wayNodeIDs map[int64]struct{}
	nodeCoords map[int64]nodeCoord
}

func NewTrailParser(cfg config.Config) *TrailParser {
	return &TrailParser{
		cfg:        cfg,
		wayNodeIDs: make(map[int64]struct{}),
		nodeCoords: make(map[int64]nodeCoord),
	}
}

// Parse reads every accepted trail way out of the extract. trail uuids
// derive from the osm way id, so re-ingesting the same extract yields
// the same identifiers.
func (p *TrailParser) Parse(ctx context.Context, mapFile string) ([]datastructure.Trail, error) {
	ways, err := p.scanWays(ctx, mapFile)
	if err != nil {
		return nil, err
	}
	if err := p.scanNodes(ctx, mapFile); err != nil {
		return nil, err
	}

	bar := progressbar.NewOptions(len(ways),
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription("[cyan][2/2][reset] building trails from osm ways..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	trails := make([]datastructure.Trail, 0, len(ways))
	skipped := 0
	for _, way := range ways {
		bar.Add(1)

		geometry := make([]datastructure.Coordinate, 0, len(way.Nodes))
		complete := true
		for _, n := range way.Nodes {
			coord, ok := p.nodeCoords[int64(n.ID)]
			if !ok {
				complete = false
				break
			}
			geometry = append(geometry, datastructure.NewCoordinate(coord.lat, coord.lon))
		}
		if !complete || len(geometry) < 2 {
			skipped++
			continue
		}

		trail := p.buildTrail(way, geometry)
		trails = append(trails, trail)
	}
	fmt.Println()

	log.Printf("osmparser: %d trails ingested, %d ways skipped (incomplete node refs)", len(trails), skipped)
	return trails, nil
}

func (p *TrailParser) scanWays(ctx context.Context, mapFile string) ([]*osm.Way, error) {
	f, err := os.Open(mapFile)
	if err != nil {
		return nil, fmt.Errorf("opening osm extract: %w", err)
	}
	defer f.Close()

	// must not be parallel, way order matters for reproducible output
	scanner := osmpbf.New(ctx, f, 0)
	defer scanner.Close()

	ways := make([]*osm.Way, 0)
	count := 0
	for scanner.Scan() {
		o := scanner.Object()
		if o.ObjectID().Type() != osm.TypeWay {
			continue
		}
		way := o.(*osm.Way)
		if len(way.Nodes) < 2 || !acceptTrailWay(way) {
			continue
		}
		if (count+1)%50000 == 0 {
			log.Printf("reading openstreetmap ways: %d...", count+1)
		}
		count++

		for _, n := range way.Nodes {
			p.wayNodeIDs[int64(n.ID)] = struct{}{}
		}
		ways = append(ways, way)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning osm ways: %w", err)
	}
	return ways, nil
}

func (p *TrailParser) scanNodes(ctx context.Context, mapFile string) error {
	f, err := os.Open(mapFile)
	if err != nil {
		return fmt.Errorf("opening osm extract: %w", err)
	}
	defer f.Close()

	scanner := osmpbf.New(ctx, f, 0)
	defer scanner.Close()

	for scanner.Scan() {
		o := scanner.Object()
		if o.ObjectID().Type() != osm.TypeNode {
			continue
		}
		n := o.(*osm.Node)
		if _, wanted := p.wayNodeIDs[int64(n.ID)]; !wanted {
			continue
		}
		p.nodeCoords[int64(n.ID)] = nodeCoord{lat: n.Lat, lon: n.Lon}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning osm nodes: %w", err)
	}
	return nil
}

func (p *TrailParser) buildTrail(way *osm.Way, geometry []datastructure.Coordinate) datastructure.Trail {
	name := way.Tags.Find("name")
	if name == "" {
		name = fmt.Sprintf("osm-way-%d", way.ID)
	}

	trail := datastructure.NewTrail(
		uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("osm-way-%d", way.ID))),
		name,
		classifyWay(way),
		geometry,
	)
	trail.Surface = way.Tags.Find("surface")
	trail.Difficulty = way.Tags.Find("sac_scale")
	trail.Source = datastructure.SourceOSM
	trail.LengthKm = geo.LineLengthKm(geometry)

	mid := geometry[len(geometry)/2]
	cell := h3.LatLngToCell(h3.NewLatLng(mid.Lat, mid.Lon), p.cfg.ChunkH3Resolution)
	trail.ChunkKey = cell.String()
	return trail
}

func acceptTrailWay(way *osm.Way) bool {
	highway := way.Tags.Find("highway")
	if _, ok := trailHighwayType[highway]; !ok {
		return false
	}
	if way.Tags.Find("access") == "private" {
		return false
	}
	// motorized tracks are not trails
	if highway == "track" && way.Tags.Find("motor_vehicle") == "yes" {
		return false
	}
	return true
}

// classifyWay resolves the trail type, surface tags override the base
// highway mapping for paved ground.
func classifyWay(way *osm.Way) string {
	base := trailHighwayType[way.Tags.Find("highway")]
	if pavedSurfaces[way.Tags.Find("surface")] {
		return datastructure.TrailTypePaved
	}
	return base
}
