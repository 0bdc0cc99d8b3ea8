// Package scheduler tests for bounded-concurrency scanning.
package scheduler

import (
	"context"
	"errors"
	"net/netip"
	"reflect"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcuoli/go-reachscan/pkg/reachscan/probe"
)

// addrs returns n consecutive addresses starting at 10.0.0.0.
func addrs(n int) []netip.Addr {
	res := make([]netip.Addr, 0, n)
	a := netip.MustParseAddr("10.0.0.0")
	for i := 0; i < n; i++ {
		res = append(res, a)
		a = a.Next()
	}
	return res
}

// evenHosts answers on port 443 for addresses whose last octet is even.
var evenHosts = probe.ProberFunc(func(_ context.Context, addr netip.Addr, port uint16) bool {
	return port == 443 && addr.As4()[3]%2 == 0
})

// gaugeProber tracks how many probes run at once.
type gaugeProber struct {
	current atomic.Int64
	max     atomic.Int64
	calls   atomic.Int64
	delay   time.Duration
}

func (g *gaugeProber) Probe(_ context.Context, _ netip.Addr, _ uint16) bool {
	n := g.current.Add(1)
	for {
		m := g.max.Load()
		if n <= m || g.max.CompareAndSwap(m, n) {
			break
		}
	}
	g.calls.Add(1)
	time.Sleep(g.delay)
	g.current.Add(-1)
	return false
}

func TestNew_Defaults(t *testing.T) {
	s := New(evenHosts, []uint16{80}, 5)
	if s.BatchSize != DefaultBatchSize {
		t.Errorf("Expected batch size %d, got %d", DefaultBatchSize, s.BatchSize)
	}
	if s.Concurrency != 5 {
		t.Errorf("Expected concurrency 5, got %d", s.Concurrency)
	}
}

func TestSchedule_ConcurrencyCeiling(t *testing.T) {
	tests := []struct {
		name        string
		hosts       int
		concurrency int
		batchSize   int
	}{
		{"ceiling below batch", 300, 17, 100},
		{"ceiling above batch", 300, 40, 7},
		{"single slot", 40, 1, 10},
		{"ceiling above input", 20, 100, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gaugeProber{delay: 2 * time.Millisecond}
			s := &Scheduler{
				Prober:      g,
				Ports:       []uint16{80, 443},
				Concurrency: tt.concurrency,
				BatchSize:   tt.batchSize,
			}
			res, err := s.Schedule(context.Background(), addrs(tt.hosts))
			if err != nil {
				t.Fatalf("Schedule failed: %v", err)
			}
			if got := g.max.Load(); got > int64(tt.concurrency) {
				t.Errorf("observed %d concurrent probes, ceiling is %d", got, tt.concurrency)
			}
			if res.PeakInFlight > tt.concurrency {
				t.Errorf("PeakInFlight = %d, ceiling is %d", res.PeakInFlight, tt.concurrency)
			}
			if res.PeakInFlight < 1 {
				t.Errorf("PeakInFlight = %d, expected at least 1", res.PeakInFlight)
			}
			if got := g.calls.Load(); got != int64(tt.hosts*2) {
				t.Errorf("Expected %d probe calls, got %d", tt.hosts*2, got)
			}
		})
	}
}

func TestSchedule_Accounting(t *testing.T) {
	input := addrs(257)
	s := &Scheduler{Prober: evenHosts, Ports: []uint16{80, 443}, Concurrency: 16, BatchSize: 50}

	res, err := s.Schedule(context.Background(), input)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if res.Scanned != len(input) {
		t.Errorf("Scanned = %d, expected %d", res.Scanned, len(input))
	}
	if len(res.Records)+res.Missed != len(input) {
		t.Errorf("reachable %d + missed %d != input %d", len(res.Records), res.Missed, len(input))
	}
	if len(res.Records) != 129 {
		t.Errorf("Expected 129 reachable hosts, got %d", len(res.Records))
	}
	for i, r := range res.Records {
		if r.Port != 443 {
			t.Errorf("record %d: port %d, expected 443", i, r.Port)
		}
		if i > 0 && !res.Records[i-1].Addr.Less(r.Addr) {
			t.Errorf("records out of input order at %d: %s then %s", i, res.Records[i-1].Addr, r.Addr)
		}
	}
}

func TestSchedule_BatchSizeDoesNotChangeResult(t *testing.T) {
	input := addrs(123)
	var baseline []probe.Record

	for _, size := range []int{0, 1, 7, 50, 123, 5000} {
		s := &Scheduler{Prober: evenHosts, Ports: []uint16{22, 443}, Concurrency: 9, BatchSize: size}
		res, err := s.Schedule(context.Background(), input)
		if err != nil {
			t.Fatalf("batch size %d: %v", size, err)
		}
		if baseline == nil {
			baseline = res.Records
			continue
		}
		if !reflect.DeepEqual(res.Records, baseline) {
			t.Errorf("batch size %d produced a different result", size)
		}
	}
}

func TestSchedule_OnBatch(t *testing.T) {
	var reports []BatchProgress
	s := &Scheduler{
		Prober:      evenHosts,
		Ports:       []uint16{443},
		Concurrency: 4,
		BatchSize:   10,
		OnBatch: func(p BatchProgress) {
			reports = append(reports, p)
		},
	}

	res, err := s.Schedule(context.Background(), addrs(25))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("Expected 3 batch reports, got %d", len(reports))
	}

	found := 0
	sizes := make([]int, 0, len(reports))
	indexes := make([]int, 0, len(reports))
	for i, p := range reports {
		if p.Total != 3 {
			t.Errorf("report %d: Total = %d, expected 3", i, p.Total)
		}
		if i > 0 && p.Completed <= reports[i-1].Completed {
			t.Errorf("report %d: Completed %d not increasing", i, p.Completed)
		}
		found += p.Found
		sizes = append(sizes, p.Size)
		indexes = append(indexes, p.Index)
	}
	sort.Ints(sizes)
	sort.Ints(indexes)
	if !reflect.DeepEqual(sizes, []int{5, 10, 10}) {
		t.Errorf("batch sizes = %v", sizes)
	}
	if !reflect.DeepEqual(indexes, []int{0, 1, 2}) {
		t.Errorf("batch indexes = %v", indexes)
	}
	if last := reports[len(reports)-1].Completed; last != 25 {
		t.Errorf("final Completed = %d, expected 25", last)
	}
	if found != len(res.Records) {
		t.Errorf("sum of batch Found = %d, reachable = %d", found, len(res.Records))
	}
}

func TestSchedule_SlowCallbackDoesNotHoldSlots(t *testing.T) {
	g := &gaugeProber{delay: time.Millisecond}
	s := &Scheduler{
		Prober:      g,
		Ports:       []uint16{80},
		Concurrency: 2,
		BatchSize:   1,
		OnBatch: func(BatchProgress) {
			time.Sleep(time.Millisecond)
		},
	}
	res, err := s.Schedule(context.Background(), addrs(30))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if res.Scanned != 30 {
		t.Errorf("Scanned = %d, expected 30", res.Scanned)
	}
}

func TestSchedule_Empty(t *testing.T) {
	called := false
	s := &Scheduler{Prober: evenHosts, Ports: []uint16{443}, OnBatch: func(BatchProgress) { called = true }}
	res, err := s.Schedule(context.Background(), nil)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if res.Scanned != 0 || len(res.Records) != 0 || res.Missed != 0 {
		t.Errorf("Expected empty result, got %+v", res)
	}
	if called {
		t.Error("OnBatch must not be called for empty input")
	}
}

func TestSchedule_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Scheduler{Prober: evenHosts, Ports: []uint16{443}, Concurrency: 4}
	res, err := s.Schedule(ctx, addrs(50))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if res == nil {
		t.Fatal("Expected a partial result alongside the error")
	}
	if res.Scanned > 50 {
		t.Errorf("Scanned = %d exceeds input", res.Scanned)
	}
	if len(res.Records)+res.Missed != res.Scanned {
		t.Errorf("reachable %d + missed %d != scanned %d", len(res.Records), res.Missed, res.Scanned)
	}
}

func TestSchedule_CancelInFlightCountsAsMissed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		started  atomic.Int64
		port80   atomic.Int64
		bothBusy = make(chan struct{})
	)
	// Port 443 hangs until ctx ends; port 80 would answer if it were tried.
	p := probe.ProberFunc(func(ctx context.Context, _ netip.Addr, port uint16) bool {
		if port == 80 {
			port80.Add(1)
			return true
		}
		if started.Add(1) == 2 {
			close(bothBusy)
		}
		<-ctx.Done()
		return false
	})

	go func() {
		<-bothBusy
		cancel()
	}()

	s := New(p, []uint16{443, 80}, 2)
	res, err := s.Schedule(ctx, addrs(10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("Expected no records, got %v", res.Records)
	}
	if res.Scanned != 2 || res.Missed != 2 {
		t.Errorf("Scanned = %d, Missed = %d, expected the 2 in-flight hosts as misses", res.Scanned, res.Missed)
	}
	if n := port80.Load(); n != 0 {
		t.Errorf("port 80 was tried %d times after cancellation", n)
	}
}

func TestDebugLogger(t *testing.T) {
	old := DebugLogger
	defer func() { DebugLogger = old }()

	var calls atomic.Int64
	DebugLogger = func(format string, args ...interface{}) {
		calls.Add(1)
	}
	s := New(evenHosts, []uint16{443}, 2)
	if _, err := s.Schedule(context.Background(), addrs(4)); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if calls.Load() == 0 {
		t.Error("Expected DebugLogger to be called")
	}
}
