package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/elevation"
	"github.com/openscenic/trailnet/pkg/kv"
	"github.com/openscenic/trailnet/pkg/osmparser"
	"github.com/openscenic/trailnet/pkg/pipeline"
)

var (
	mapFile    = flag.String("f", "boulder.osm.pbf", "openstreetmap extract for the trail network")
	workspace  = flag.String("workspace", "default", "staging workspace name for this region")
	dbDir      = flag.String("db", "./trailnet-db", "badger directory for snapshots and routes")
	noSrtm     = flag.Bool("nosrtm", false, "skip srtm elevation annotation (flat elevations)")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		// https://go.dev/blog/pprof
		// ./bin/trailnet-preprocessing -cpuprofile=trailnetcpu.prof -memprofile=trailnetmem.mprof
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()

		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var elev elevation.Service
	if *noSrtm {
		elev = elevation.NewPlaneService(0, 0, 0)
	} else {
		srtm, err := elevation.NewSrtmService(http.DefaultClient)
		if err != nil {
			log.Fatalf("creating srtm elevation service: %v", err)
		}
		elev = srtm
	}

	db, err := badger.Open(badger.DefaultOptions(*dbDir))
	if err != nil {
		log.Fatalf("opening badger at %s: %v", *dbDir, err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("reading osm file %s", *mapFile)
	parser := osmparser.NewTrailParser(cfg)
	trails, err := parser.Parse(ctx, *mapFile)
	if err != nil {
		log.Fatalf("parsing osm extract: %v", err)
	}
	recordMemProfile(memprofile, "parsing_osm_data")

	p := pipeline.New(cfg, elev, kv.NewKVDB(db))
	g, report, err := p.Run(ctx, *workspace, trails)
	if err != nil {
		log.Fatalf("pipeline run failed: %v", err)
	}
	recordMemProfile(memprofile, "finish_pipeline")

	fmt.Printf("\nworkspace %s ready: %d vertices, %d edges, %d components, search ready: %v\n",
		*workspace, g.VertexCount(), g.EdgeCount(), report.Connectivity.Components, report.SearchReady)
}

func recordMemProfile(memprofile *string, name string) {
	if *memprofile != "" {
		*memprofile = strings.Replace(*memprofile, ".mprof", fmt.Sprintf("%s.mprof", name), -1)
		f, err := os.Create(*memprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
