package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/dgraph-io/badger/v4"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/connectivity"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/kv"
	"github.com/openscenic/trailnet/pkg/search"
)

var (
	workspace  = flag.String("workspace", "default", "staging workspace holding the graph snapshot")
	dbDir      = flag.String("db", "./trailnet-db", "badger directory for snapshots and routes")
	distKm     = flag.Float64("dist", 15.0, "target route distance in km")
	gainM      = flag.Float64("gain", 0, "target elevation gain in meters, 0 to ignore")
	seed       = flag.String("seed", "", "seed folded into candidate ids")
	save       = flag.Bool("save", false, "persist the ranked candidates")
	showGeom   = flag.Bool("polyline", false, "print the top candidate's encoded geometry")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
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

	db, err := badger.Open(badger.DefaultOptions(*dbDir))
	if err != nil {
		log.Fatalf("opening badger at %s: %v", *dbDir, err)
	}
	defer db.Close()
	store := kv.NewKVDB(db)

	ctx := context.Background()
	g, err := store.LoadGraphSnapshot(ctx, *workspace)
	if err != nil {
		log.Fatalf("loading graph snapshot for %s: %v", *workspace, err)
	}

	summary := connectivity.Analyze(g)
	if !summary.SearchReady(0.5) {
		log.Fatalf("workspace %s too fragmented for search (score %.3f), re-run preprocessing", *workspace, summary.Score)
	}

	engine := search.New(cfg, search.NewHeuristicScorer())
	result, err := engine.Search(ctx, g, search.Query{
		TargetDistKm: *distKm,
		TargetGainM:  *gainM,
		Seed:         *seed,
	})
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}
	if len(result.Candidates) == 0 {
		fmt.Printf("no routes found: %s\n", result.Reason)
		return
	}

	for i, c := range result.Candidates {
		fmt.Printf("%2d. %s %s %.1fkm +%.0fm overlap %.0f%% score %.3f\n",
			i+1, c.ID, c.Shape, c.DistKm, c.GainM, c.OverlapPct*100, c.Score)
	}
	if *showGeom {
		fmt.Printf("top route polyline: %s\n", datastructure.RenderPath(result.Candidates[0].Geometry))
	}

	if *save {
		if err := store.SaveRoutes(ctx, g, result.Candidates); err != nil {
			log.Fatalf("saving routes: %v", err)
		}
		log.Printf("saved %d routes for workspace %s", len(result.Candidates), *workspace)
	}
}
