package transfer

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

// Progress is a snapshot of plan execution, suitable for a terminal
// indicator. Values delivered to a Sink are monotonically non-decreasing
// and reach (total, total) exactly when the transfer completes.
type Progress struct {
	EntriesCompleted int
	EntriesTotal     int
	BytesCompleted   int64
	BytesTotal       int64
}

// Sink receives progress snapshots. Implementations must tolerate being
// called from the engine's worker goroutines; a failing or panicking sink
// never aborts the transfer.
type Sink interface {
	Update(p Progress)
}

// NopSink discards progress.
type NopSink struct{}

func (NopSink) Update(Progress) {}

// tracker accumulates progress across concurrent workers and forwards
// snapshots to the sink. Delivery is serialized under the mutex so the
// sink only ever sees non-decreasing values.
type tracker struct {
	mu   sync.Mutex
	sink Sink
	cur  Progress
}

func newTracker(sink Sink, entriesTotal int, bytesTotal int64) *tracker {
	if sink == nil {
		sink = NopSink{}
	}

	return &tracker{
		sink: sink,
		cur: Progress{
			EntriesTotal: entriesTotal,
			BytesTotal:   bytesTotal,
		},
	}
}

func (t *tracker) addBytes(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.BytesCompleted += n
	t.notify()
}

func (t *tracker) entryDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.EntriesCompleted++
	t.notify()
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// notify must be called with the mutex held.
func (t *tracker) notify() {
	defer func() {
		// A broken progress sink is a cosmetic failure only.
		_ = recover()
	}()

	t.sink.Update(t.cur)
}

// BarSink renders plan progress as a single byte-count progress bar.
type BarSink struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

func NewBarSink(name string) *BarSink {
	progress := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)

	bar := progress.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Name(" "),
			decor.AverageSpeed(decor.UnitKiB, "% .2f"),
		),
	)

	return &BarSink{progress: progress, bar: bar}
}

func (s *BarSink) Update(p Progress) {
	s.bar.SetTotal(p.BytesTotal, false)
	s.bar.SetCurrent(p.BytesCompleted)
}

// Wait flushes the bar after the transfer finishes or fails.
func (s *BarSink) Wait() {
	s.bar.SetTotal(-1, true)
	s.progress.Wait()
}

// Report summarizes one executed plan.
type Report struct {
	PlanID           string
	EntriesCompleted int
	EntriesTotal     int
	BytesCopied      int64
	BytesTotal       int64
	SkippedExisting  []string
	Duration         time.Duration
}

func (r *Report) String() string {
	return humanize.IBytes(uint64(r.BytesCopied)) + " in " + r.Duration.Truncate(time.Millisecond).String()
}
