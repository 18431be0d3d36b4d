// Package calibrate determines which fingerprint facets are stable enough
// to signal real change for one target (spec.md C3). Its output, the
// significant-facet set, is the only lens the rest of the engine is
// allowed to look at a response through.
package calibrate

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/arjun-x/arjun-go/internal/fingerprint"
	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

// ErrUnstable is returned when the significant-facet set empties during
// refinement: the page is too noisy to probe reliably (spec.md §4.3.4).
var ErrUnstable = errors.New("calibrate: page unstable, no significant facets remain")

// unhealthyStatuses are the status codes spec.md §4.3 says raise a
// warning without aborting the run.
var unhealthyStatuses = map[int]bool{400: true, 413: true, 418: true, 429: true, 503: true}

const refinementLoopLimit = 10

// Baseline is the frozen result of calibration: the reference fingerprint
// every later diff is compared against, plus the facets trusted to carry
// signal.
type Baseline struct {
	Fingerprint model.Fingerprint
	Significant model.SignificantSet
	Unhealthy   bool
	Body        []byte // first probe's raw response body, for internal/extract's heuristic name mining
}

// Sender is the subset of transport.Client calibrate needs, so tests can
// substitute a stub without standing up a real HTTP server.
type Sender interface {
	Send(ctx context.Context, tpl model.Template, payload model.Payload, kill func() bool) (*transport.Response, error)
}

// Calibrate runs the two-probe-plus-junk-probe sequence described in
// spec.md §4.3 against tpl and freezes a Baseline.
func Calibrate(ctx context.Context, sender Sender, tpl model.Template, kill func() bool) (*Baseline, error) {
	junk1 := RandomJunkName()
	payload1 := model.Populate([]string{junk1})

	resp1, err := sender.Send(ctx, tpl, payload1, kill)
	if err != nil {
		return nil, err
	}
	unhealthy := unhealthyStatuses[resp1.StatusCode]
	f1 := fingerprint.Compute(resp1, payload1)

	resp2, err := sender.Send(ctx, tpl, payload1, kill)
	if err != nil {
		return nil, err
	}
	f2 := fingerprint.Compute(resp2, payload1)

	sig := model.SignificantSet{}
	for _, f := range model.FacetOrder {
		if fingerprint.Equal(f1, f2, f) {
			sig[f] = true
		}
	}

	junk2 := RandomJunkName()
	payload2 := model.Populate([]string{junk2})
	resp3, err := sender.Send(ctx, tpl, payload2, kill)
	if err == nil {
		f3 := fingerprint.Compute(resp3, payload2)
		for loops := 0; loops < refinementLoopLimit; loops++ {
			facet, diverged := fingerprint.Diff(f1, f3, sig)
			if !diverged {
				break
			}
			delete(sig, facet)
			if len(sig) == 0 {
				break
			}
		}
	}
	// A transport error on the junk-divergence probe is "no information"
	// (spec.md §7): refinement simply stops with whatever sig the two
	// baseline probes already established.

	if len(sig) == 0 {
		return &Baseline{Fingerprint: f1, Significant: sig, Unhealthy: unhealthy, Body: resp1.Body}, ErrUnstable
	}

	return &Baseline{Fingerprint: f1, Significant: sig, Unhealthy: unhealthy, Body: resp1.Body}, nil
}

// RandomJunkName generates a name no real wordlist would contain, for use
// as a junk probe both here and in internal/narrow's instability guard.
func RandomJunkName() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			buf[i] = alphabet[0]
			continue
		}
		buf[i] = alphabet[n.Int64()]
	}
	return "z" + string(buf)
}

// ensure transport.Client satisfies Sender at compile time.
var _ Sender = (*transport.Client)(nil)
