// Package pipeline drives a region run end to end: normalize, split,
// build, repair, analyze. trails are grouped into h3 chunks; chunks run
// the geometry stages in parallel because they touch no shared state.
// segments reaching across a chunk boundary get one more serialized
// split pass so cross-chunk crossings still become shared vertices,
// then the graph stages run once over the merged segment set.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/uber/h3-go/v4"

	"github.com/openscenic/trailnet/pkg/concurrent"
	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/connectivity"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/elevation"
	"github.com/openscenic/trailnet/pkg/geo"
	"github.com/openscenic/trailnet/pkg/kv"
	"github.com/openscenic/trailnet/pkg/network"
	"github.com/openscenic/trailnet/pkg/normalizer"
	"github.com/openscenic/trailnet/pkg/repair"
	"github.com/openscenic/trailnet/pkg/splitter"
)

// minimum largest-component trail share before search is worth running
const defaultSearchGate = 0.5

type RunReport struct {
	Workspace string

	Chunks       int
	FailedChunks int

	Normalize normalizer.Report
	Split     splitter.Report
	Build     network.Report
	Repair    repair.Report

	Connectivity connectivity.Summary
	SearchReady  bool
}

type Pipeline struct {
	cfg  config.Config
	elev elevation.Service

	// optional, snapshots are skipped when nil
	store *kv.KVDB
}

func New(cfg config.Config, elev elevation.Service, store *kv.KVDB) *Pipeline {
	return &Pipeline{cfg: cfg, elev: elev, store: store}
}

type chunkJob struct {
	key    string
	trails []datastructure.Trail
}

type chunkResult struct {
	key       string
	trails    []datastructure.Trail
	normalize normalizer.Report
	split     splitter.Report
	err       error
}

// Run processes one region into a repaired graph. per-chunk failures
// drop that chunk and continue, the rest of the region still builds.
func (p *Pipeline) Run(ctx context.Context, workspace string, trails []datastructure.Trail) (*datastructure.Graph, RunReport, error) {
	report := RunReport{Workspace: workspace}
	if len(trails) == 0 {
		return nil, report, fmt.Errorf("workspace %s: no trails to process", workspace)
	}

	chunks := p.chunkTrails(trails)
	report.Chunks = len(chunks)
	log.Printf("pipeline[%s]: %d trails in %d chunks", workspace, len(trails), len(chunks))

	workers := concurrent.NewWorkerPool[chunkJob, chunkResult](p.cfg.ChunkWorkers, len(chunks))
	for _, chunk := range chunks {
		workers.AddJob(chunk)
	}
	workers.Close()
	workers.Start(func(job chunkJob) chunkResult {
		return p.processChunk(ctx, job)
	})
	workers.Wait()

	results := make([]chunkResult, 0, len(chunks))
	for result := range workers.CollectResults() {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].key < results[j].key })

	succeeded := make([]chunkResult, 0, len(results))
	segmentCount := 0
	var regionBound datastructure.Bound
	first := true
	for _, result := range results {
		if result.err != nil {
			report.FailedChunks++
			log.Printf("pipeline[%s]: chunk %s failed, dropped: %v", workspace, result.key, result.err)
			continue
		}
		mergeNormalizeReports(&report.Normalize, result.normalize)
		mergeSplitReports(&report.Split, result.split)
		for _, trail := range result.trails {
			if first {
				regionBound = trail.Bound
				first = false
			} else {
				regionBound = unionBound(regionBound, trail.Bound)
			}
		}
		segmentCount += len(result.trails)
		succeeded = append(succeeded, result)
	}
	if segmentCount == 0 {
		return nil, report, fmt.Errorf("workspace %s: every chunk failed", workspace)
	}

	segments, err := p.resolveSeams(ctx, succeeded, &report)
	if err != nil {
		return nil, report, fmt.Errorf("resolving chunk seams: %w", err)
	}
	report.Split.Output = len(segments)

	g, buildReport, err := network.New(p.cfg).Build(workspace, segments, regionBound)
	if err != nil {
		return nil, report, fmt.Errorf("building network: %w", err)
	}
	report.Build = buildReport

	repairReport, err := repair.New(p.cfg).Repair(ctx, g)
	if err != nil {
		return nil, report, fmt.Errorf("repairing graph: %w", err)
	}
	report.Repair = repairReport

	report.Connectivity = connectivity.Analyze(g)
	report.SearchReady = report.Connectivity.SearchReady(defaultSearchGate)

	if p.store != nil {
		if err := p.store.SaveGraphSnapshot(ctx, g); err != nil {
			return nil, report, fmt.Errorf("saving graph snapshot: %w", err)
		}
	}

	log.Printf("pipeline[%s]: done, %d vertices / %d edges / search ready: %v",
		workspace, g.VertexCount(), g.EdgeCount(), report.SearchReady)
	return g, report, nil
}

// processChunk runs the geometry stages for one chunk. the chunk is
// atomic, any stage error fails it whole.
func (p *Pipeline) processChunk(ctx context.Context, job chunkJob) chunkResult {
	result := chunkResult{key: job.key}

	normalized, normalizeReport, err := normalizer.New(p.cfg, p.elev).Normalize(ctx, job.trails)
	if err != nil {
		result.err = fmt.Errorf("normalizing: %w", err)
		return result
	}
	result.normalize = normalizeReport

	split, splitReport, err := splitter.New(p.cfg, p.elev).Split(ctx, normalized)
	if err != nil {
		result.err = fmt.Errorf("splitting: %w", err)
		return result
	}
	result.split = splitReport
	result.trails = split
	return result
}

// resolveSeams re-splits segments whose bounds reach into another
// chunk. chunking guarantees nothing about cell boundaries, two trails
// that cross can carry different chunk keys and the parallel stage
// never sees them together, so every boundary-reaching segment goes
// through one more serialized split pass against its peers.
func (p *Pipeline) resolveSeams(ctx context.Context, results []chunkResult, report *RunReport) ([]datastructure.Trail, error) {
	chunkBounds := make(map[string]datastructure.Bound, len(results))
	for _, result := range results {
		if len(result.trails) == 0 {
			continue
		}
		b := result.trails[0].Bound
		for _, trail := range result.trails[1:] {
			b = unionBound(b, trail.Bound)
		}
		chunkBounds[result.key] = b
	}

	tolM := p.cfg.TIntersectionToleranceM
	if p.cfg.SnapToleranceM > tolM {
		tolM = p.cfg.SnapToleranceM
	}

	interior := make([]datastructure.Trail, 0)
	seam := make([]datastructure.Trail, 0)
	for _, result := range results {
		for _, trail := range result.trails {
			reach := trail.Bound.Expand(geo.MetersToDegrees(tolM, trail.Bound.MinLat))
			crossesSeam := false
			for key, b := range chunkBounds {
				if key == result.key {
					continue
				}
				if reach.Overlaps(b) {
					crossesSeam = true
					break
				}
			}
			if crossesSeam {
				seam = append(seam, trail)
			} else {
				interior = append(interior, trail)
			}
		}
	}
	if len(seam) == 0 {
		return interior, nil
	}

	log.Printf("pipeline: %d boundary segments across %d chunks, running seam split", len(seam), len(chunkBounds))
	out, seamReport, err := splitter.New(p.cfg, p.elev).Split(ctx, seam)
	if err != nil {
		return nil, err
	}
	report.Split.CrossSplits += seamReport.CrossSplits
	report.Split.TSplits += seamReport.TSplits
	report.Split.SnappedGaps += seamReport.SnappedGaps
	report.Split.MergedShort += seamReport.MergedShort
	report.Split.DroppedShort += seamReport.DroppedShort
	report.Split.Dropped += seamReport.Dropped
	report.Split.Failures = append(report.Split.Failures, seamReport.Failures...)
	return append(interior, out...), nil
}

// chunkTrails groups trails by their h3 chunk key, assigning one from
// the first coordinate when ingestion left it empty.
func (p *Pipeline) chunkTrails(trails []datastructure.Trail) []chunkJob {
	grouped := make(map[string][]datastructure.Trail)
	for _, trail := range trails {
		key := trail.ChunkKey
		if key == "" && len(trail.Geometry) > 0 {
			start := trail.Geometry[0]
			key = h3.LatLngToCell(h3.NewLatLng(start.Lat, start.Lon), p.cfg.ChunkH3Resolution).String()
		}
		grouped[key] = append(grouped[key], trail)
	}

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	chunks := make([]chunkJob, 0, len(grouped))
	for _, key := range keys {
		chunks = append(chunks, chunkJob{key: key, trails: grouped[key]})
	}
	return chunks
}

func mergeNormalizeReports(into *normalizer.Report, from normalizer.Report) {
	into.Input += from.Input
	into.Output += from.Output
	into.Deduped += from.Deduped
	into.Split += from.Split
	into.Flagged += from.Flagged
	into.Dropped += from.Dropped
	into.Failures = append(into.Failures, from.Failures...)
}

func mergeSplitReports(into *splitter.Report, from splitter.Report) {
	into.Input += from.Input
	into.Output += from.Output
	into.CrossSplits += from.CrossSplits
	into.TSplits += from.TSplits
	into.SnappedGaps += from.SnappedGaps
	into.MergedShort += from.MergedShort
	into.DroppedShort += from.DroppedShort
	into.Dropped += from.Dropped
	into.Failures = append(into.Failures, from.Failures...)
}

func unionBound(a, b datastructure.Bound) datastructure.Bound {
	if b.MinLat < a.MinLat {
		a.MinLat = b.MinLat
	}
	if b.MinLon < a.MinLon {
		a.MinLon = b.MinLon
	}
	if b.MaxLat > a.MaxLat {
		a.MaxLat = b.MaxLat
	}
	if b.MaxLon > a.MaxLon {
		a.MaxLon = b.MaxLon
	}
	return a
}
