package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arjun-x/arjun-go/internal/limits"
	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

// defaultErrorStreakThreshold is spec.md §5's cancellation default: the
// engine sets kill after this many consecutive transport errors from one
// target's sender.
const defaultErrorStreakThreshold = 20

// guardedSender wraps a Sender with the two cancellation triggers spec.md
// §3 invariant 4 and §5/§7 require beyond the caller's own kill signal: a
// total-request budget and a consecutive-transport-error streak. Every
// Send is recorded against tracker (nil tracker never trips) and counted
// toward the streak (any successful response resets it to zero). Either
// condition flips tripped, which effectiveKill below folds into the kill
// function the rest of the pipeline already checks.
type guardedSender struct {
	inner     Sender
	tracker   *limits.Tracker
	streakMax int

	mu      sync.Mutex
	streak  int
	tripped atomic.Bool
}

func newGuardedSender(inner Sender, tracker *limits.Tracker, streakMax int) *guardedSender {
	if streakMax < 1 {
		streakMax = defaultErrorStreakThreshold
	}
	return &guardedSender{inner: inner, tracker: tracker, streakMax: streakMax}
}

func (g *guardedSender) Send(ctx context.Context, tpl model.Template, payload model.Payload, kill func() bool) (*transport.Response, error) {
	resp, err := g.inner.Send(ctx, tpl, payload, kill)

	if g.tracker != nil {
		g.tracker.Record()
		if g.tracker.Exhausted() {
			g.tripped.Store(true)
		}
	}

	g.mu.Lock()
	if err != nil {
		g.streak++
		if g.streak >= g.streakMax {
			g.tripped.Store(true)
		}
	} else {
		g.streak = 0
	}
	g.mu.Unlock()

	return resp, err
}

// effectiveKill ORs the caller's kill signal with the guard's own tripped
// flag, so a budget overrun or an error streak cancels the run exactly the
// way an OS interrupt does (spec.md §5: "the flag is set on OS interrupt
// or on a configurable streak of consecutive transport errors").
func (g *guardedSender) effectiveKill(kill func() bool) func() bool {
	return func() bool {
		if g.tripped.Load() {
			return true
		}
		return kill != nil && kill()
	}
}
