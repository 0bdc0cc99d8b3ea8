// Package scheduler runs host scans over a large address set under a single
// global concurrency ceiling.
//
// Addresses are consumed as one flat stream. A goroutine is only started after
// it has acquired a slot from the shared gate, so the number of hosts being
// probed never exceeds Concurrency, including across batch boundaries.
// Batches exist only for progress reporting and have no effect on results.
package scheduler

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/marcuoli/go-reachscan/pkg/reachscan/probe"
)

const (
	// DefaultConcurrency is the default admission ceiling.
	DefaultConcurrency = 1000
	// DefaultBatchSize is the default progress batch size.
	DefaultBatchSize = 1000
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from scheduling operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// BatchProgress is reported once per batch, after every address in it has
// finished. Batches may finish out of order.
type BatchProgress struct {
	// Index is the zero-based position of the batch in the input.
	Index int
	// Total is the number of batches in the run.
	Total int
	// Size is the number of addresses in the batch.
	Size int
	// Found is the number of reachable addresses in the batch.
	Found int
	// Completed is the number of addresses in all batches reported so far.
	Completed int
}

// Result is the outcome of a scheduling run.
type Result struct {
	// Records holds one record per reachable address, in input order.
	Records []probe.Record
	// Scanned counts addresses that finished scanning, hit or miss.
	Scanned int
	// Missed counts finished addresses with no reachable port.
	Missed int
	// PeakInFlight is the highest number of concurrent host scans observed.
	PeakInFlight int
	Elapsed      time.Duration
}

// Scheduler admits host scans under a global concurrency ceiling.
type Scheduler struct {
	Prober probe.Prober
	// Ports are tried per host in this order; the first success wins.
	Ports []uint16
	// Concurrency is the maximum number of hosts scanned at once.
	Concurrency int
	// BatchSize controls progress granularity only.
	BatchSize int
	// OnBatch, if set, is called serially from a single goroutine.
	OnBatch func(BatchProgress)
}

// New creates a scheduler with the default batch size.
func New(p probe.Prober, ports []uint16, concurrency int) *Scheduler {
	return &Scheduler{
		Prober:      p,
		Ports:       ports,
		Concurrency: concurrency,
		BatchSize:   DefaultBatchSize,
	}
}

// batch tracks outstanding work for one progress batch.
type batch struct {
	index     int
	size      int
	remaining atomic.Int64
	found     atomic.Int64
}

// Schedule scans every address and returns once all admitted work has
// finished. Individual probe failures are never returned as errors; an
// unreachable host is simply absent from Result.Records. A non-nil error is
// only returned when ctx ends before every address was admitted, together
// with the partial result. Hosts in flight when ctx ends are cut short and
// counted as missed.
func (s *Scheduler) Schedule(ctx context.Context, addrs []netip.Addr) (*Result, error) {
	start := time.Now()
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	res := &Result{}
	if len(addrs) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	batches := make([]*batch, 0, (len(addrs)+batchSize-1)/batchSize)
	for off := 0; off < len(addrs); off += batchSize {
		size := batchSize
		if off+size > len(addrs) {
			size = len(addrs) - off
		}
		b := &batch{index: len(batches), size: size}
		b.remaining.Store(int64(size))
		batches = append(batches, b)
	}
	debugLog("scheduling %d addresses in %d batches, concurrency %d", len(addrs), len(batches), concurrency)

	reporter := newReporter(len(batches), s.OnBatch)

	var (
		gate      = semaphore.NewWeighted(int64(concurrency))
		hits      = make([]probe.Record, len(addrs))
		found     = make([]bool, len(addrs))
		inFlight  atomic.Int64
		peak      atomic.Int64
		completed atomic.Int64
		wg        sync.WaitGroup
		admitErr  error
	)

	for i, addr := range addrs {
		if err := gate.Acquire(ctx, 1); err != nil {
			admitErr = err
			debugLog("admission stopped after %d addresses: %v", i, err)
			break
		}
		wg.Add(1)
		go func(i int, addr netip.Addr) {
			defer wg.Done()
			defer gate.Release(1)

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			rec, ok := probe.ScanHost(ctx, s.Prober, addr, s.Ports)
			inFlight.Add(-1)

			b := batches[i/batchSize]
			if ok {
				hits[i] = rec
				found[i] = true
				b.found.Add(1)
			}
			completed.Add(1)
			if b.remaining.Add(-1) == 0 {
				reporter.send(b.index, b.size, int(b.found.Load()))
			}
		}(i, addr)
	}

	wg.Wait()
	reporter.close()

	for i := range hits {
		if found[i] {
			res.Records = append(res.Records, hits[i])
		}
	}
	res.Scanned = int(completed.Load())
	res.Missed = res.Scanned - len(res.Records)
	res.PeakInFlight = int(peak.Load())
	res.Elapsed = time.Since(start)
	debugLog("scanned %d addresses, %d reachable, peak in flight %d, %v",
		res.Scanned, len(res.Records), res.PeakInFlight, res.Elapsed)
	return res, admitErr
}

// reporter delivers batch completions to a callback from one goroutine so
// that slow or blocking callbacks never hold a scan slot.
type reporter struct {
	total int
	ch    chan BatchProgress
	done  chan struct{}
	fn    func(BatchProgress)
}

func newReporter(total int, fn func(BatchProgress)) *reporter {
	r := &reporter{total: total, fn: fn}
	if fn == nil {
		return r
	}
	// Sized so that send never blocks: each batch completes exactly once.
	r.ch = make(chan BatchProgress, total)
	r.done = make(chan struct{})
	go r.loop()
	return r
}

func (r *reporter) loop() {
	defer close(r.done)
	completed := 0
	for ev := range r.ch {
		completed += ev.Size
		ev.Completed = completed
		r.fn(ev)
	}
}

func (r *reporter) send(index, size, found int) {
	if r.ch == nil {
		return
	}
	r.ch <- BatchProgress{Index: index, Total: r.total, Size: size, Found: found}
}

func (r *reporter) close() {
	if r.ch == nil {
		return
	}
	close(r.ch)
	<-r.done
}
