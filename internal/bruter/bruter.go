// Package bruter sends one chunk of candidate names as a single request
// and reports whether it provoked an anomaly relative to the calibrated
// baseline (spec.md C5).
package bruter

import (
	"context"

	"github.com/arjun-x/arjun-go/internal/fingerprint"
	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

// Sender is the transport seam bruter needs.
type Sender interface {
	Send(ctx context.Context, tpl model.Template, payload model.Payload, kill func() bool) (*transport.Response, error)
}

// Bruter sends chunk's populated payload once and compares the response to
// baseline on every significant facet, per spec.md §4.4. It returns the
// first differing facet and true, or ("", false) when the response is
// indistinguishable from baseline — "no information" transport errors
// collapse to the same (⊥) result so a single flaky request never
// promotes a noise chunk (spec.md §7).
func Bruter(
	ctx context.Context,
	sender Sender,
	tpl model.Template,
	baseline model.Fingerprint,
	sig model.SignificantSet,
	chunk model.Chunk,
	kill func() bool,
) (model.Facet, bool) {
	payload := model.Populate(chunk)

	resp, err := sender.Send(ctx, tpl, payload, kill)
	if err != nil {
		return "", false
	}

	fp := fingerprint.Compute(resp, payload)
	return fingerprint.Diff(baseline, fp, sig)
}

// Verify is Bruter in the single-name "verify mode" of spec.md §4.4.4: the
// same comparison, called out separately so the caller's intent (narrowing
// vs. final confirmation) is explicit at the call site.
func Verify(
	ctx context.Context,
	sender Sender,
	tpl model.Template,
	baseline model.Fingerprint,
	sig model.SignificantSet,
	name string,
	kill func() bool,
) (model.Facet, bool) {
	return Bruter(ctx, sender, tpl, baseline, sig, model.Chunk{name}, kill)
}
