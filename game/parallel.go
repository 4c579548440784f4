package game

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/canopy/systems"
)

// defaultParallelThreshold is the minimum cell count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const defaultParallelThreshold = 1024

// workerScratch holds per-worker reusable buffers.
type workerScratch[S any] struct {
	Neighbors systems.Neighborhood[S]
}

// rowBand is a contiguous run of cells handed to one worker for one step.
type rowBand struct {
	start, end int
	done       *sync.WaitGroup
}

// parallelState owns the worker pool used during the compute phase.
// Workers start lazily on the first parallel step and live until Close.
type parallelState[S any] struct {
	scratches  []workerScratch[S]
	numWorkers int
	threshold  int

	bands   chan rowBand
	workers sync.WaitGroup
}

func newParallelState[S any](workers, threshold int) *parallelState[S] {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = defaultParallelThreshold
	}
	scratches := make([]workerScratch[S], workers)
	for i := range scratches {
		scratches[i].Neighbors = make(systems.Neighborhood[S], 8)
	}
	return &parallelState[S]{
		numWorkers: workers,
		threshold:  threshold,
		scratches:  scratches,
	}
}

// ensureWorkers launches one goroutine per scratch buffer.
func (p *parallelState[S]) ensureWorkers(g *Grid[S]) {
	if p.bands != nil {
		return
	}
	p.bands = make(chan rowBand, p.numWorkers)
	for i := range p.scratches {
		p.workers.Add(1)
		go func(scratch *workerScratch[S]) {
			defer p.workers.Done()
			for band := range p.bands {
				g.computeChunk(band.start, band.end, scratch)
				band.done.Done()
			}
		}(&p.scratches[i])
	}
}

// stopWorkers closes the band queue and waits for every worker to exit.
func (p *parallelState[S]) stopWorkers() {
	if p.bands == nil {
		return
	}
	close(p.bands)
	p.workers.Wait()
	p.bands = nil
}

// computeParallel splits the grid into one band per worker and blocks until
// all of them are evaluated.
func (g *Grid[S]) computeParallel(n int) {
	p := g.parallel
	p.ensureWorkers(g)

	size := (n + p.numWorkers - 1) / p.numWorkers
	var done sync.WaitGroup
	for start := 0; start < n; start += size {
		done.Add(1)
		p.bands <- rowBand{start: start, end: min(start+size, n), done: &done}
	}
	done.Wait()
}

// computeChunk evaluates the rule for a range of cells. It reads only the
// step snapshot and writes only its own slots of next.
func (g *Grid[S]) computeChunk(i0, i1 int, scratch *workerScratch[S]) {
	for i := i0; i < i1; i++ {
		clear(scratch.Neighbors)
		for _, j := range g.neighbors[i] {
			scratch.Neighbors[g.positions[j]] = g.snapshot[j]
		}
		g.next[i] = g.rule.Transition(g.snapshot[i], scratch.Neighbors)
	}
}
