package jobs

import (
	"sync"
)

// State is the explicit client state: one feedback slot per kind, the batch
// gauge and the log.
type State struct {
	Single Feedback   `json:"single"`
	Batch  Feedback   `json:"batch"`
	Gauge  Gauge      `json:"gauge"`
	Log    []LogEntry `json:"log"`
}

func (s State) Feedback(kind Kind) Feedback {
	if kind == KindBatch {
		return s.Batch
	}
	return s.Single
}

// Board is an in-memory Sinks implementation. It is safe for concurrent use
// so a submission and the stream consumer may write to it at the same time.
type Board struct {
	mu    sync.Mutex
	state State
}

var _ Sinks = (*Board)(nil)

func NewBoard() *Board { return &Board{} }

func (b *Board) SetFeedback(kind Kind, fb Feedback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch kind {
	case KindSingle:
		b.state.Single = fb
	case KindBatch:
		b.state.Batch = fb
	}
}

func (b *Board) AppendLog(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Log = append(b.state.Log, entry)
}

func (b *Board) SetGaugePercent(percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Gauge.Percent = percent
}

func (b *Board) SetGaugeVisible(visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Gauge.Visible = visible
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state
	s.Log = append([]LogEntry(nil), b.state.Log...)
	return s
}
