package submit

import (
	"sync"

	"github.com/go-go-golems/jobctl/pkg/jobs"
)

// Form is the submit control of one job kind: its button and input.
type Form interface {
	SetEnabled(enabled bool)
	Clear()
}

type nopForm struct{}

func (nopForm) SetEnabled(bool) {}
func (nopForm) Clear()          {}

// NopForm is used when the caller has no interactive control, e.g. the CLI.
var NopForm Form = nopForm{}

// gate allows at most one outstanding submission per kind.
type gate struct {
	mu   sync.Mutex
	busy map[jobs.Kind]bool
}

func (g *gate) acquire(kind jobs.Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy == nil {
		g.busy = map[jobs.Kind]bool{}
	}
	if g.busy[kind] {
		return false
	}
	g.busy[kind] = true
	return true
}

func (g *gate) release(kind jobs.Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, kind)
}

func (g *gate) Busy(kind jobs.Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy[kind]
}
