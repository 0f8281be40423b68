package soft

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum fragment count to shade in parallel.
// Below this, a single band is faster than the channel round trip.
const parallelThreshold = 128 * 128

// band is a range of rows [start, end) for one worker.
type band struct {
	start, end int
	shade      func(y0, y1 int)
}

// bandPool shades row bands on persistent worker goroutines.
type bandPool struct {
	numWorkers int

	workChan chan band
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newBandPool(workers int) *bandPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &bandPool{numWorkers: workers}
}

func (p *bandPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan band, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *bandPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *bandPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case b, ok := <-p.workChan:
			if !ok {
				return
			}
			b.shade(b.start, b.end)
			p.doneChan <- struct{}{}
		}
	}
}

// run shades rows [0, rows) and returns when all bands are done.
func (p *bandPool) run(rows, cols int, shade func(y0, y1 int)) {
	if rows <= 0 {
		return
	}
	if p.numWorkers == 1 || rows*cols < parallelThreshold {
		shade(0, rows)
		return
	}
	if !p.running {
		p.start()
	}

	chunk := (rows + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunk
		end := min(start+chunk, rows)
		if start >= end {
			continue
		}
		p.workChan <- band{start: start, end: end, shade: shade}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
