// Package engine is the orchestrator (spec.md's Orchestrator): it wires
// the transport, calibrator, extractor, bruter, narrower and confirmer
// into the per-target lifecycle spec.md §3 names — create baseline,
// calibrate, initial chunking, narrowing rounds, verification, export,
// teardown — for one target URL at a time.
package engine

import (
	"context"

	"github.com/arjun-x/arjun-go/internal/bruter"
	"github.com/arjun-x/arjun-go/internal/calibrate"
	"github.com/arjun-x/arjun-go/internal/confirm"
	"github.com/arjun-x/arjun-go/internal/explain"
	"github.com/arjun-x/arjun-go/internal/extract"
	"github.com/arjun-x/arjun-go/internal/limits"
	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/narrow"
	"github.com/arjun-x/arjun-go/internal/progress"
	"github.com/arjun-x/arjun-go/internal/rlog"
	"github.com/arjun-x/arjun-go/internal/transport"
)

// Sender is the transport seam the orchestrator needs; *transport.Client
// satisfies it.
type Sender interface {
	Send(ctx context.Context, tpl model.Template, payload model.Payload, kill func() bool) (*transport.Response, error)
}

// Options are the per-target knobs the orchestrator consults; they mirror
// config.RunConfig's threaded fields plus the wordlist/special data the
// caller has already loaded.
type Options struct {
	Wordlist  []string
	Special   map[string]string // bundled high-value name -> fixed sentinel, merged in per spec.md §6
	ChunkSize int
	Threads   int
	Explainer *explain.Explainer // optional; nil disables rationale generation
	Progress  *progress.Hub      // optional; nil disables live broadcast

	// Budget bounds the total requests this target's run may issue
	// (spec.md §3 invariant 4). Nil, or a zero/negative Max, never trips.
	Budget *limits.Budget
	// ErrorStreakThreshold is the number of consecutive transport errors
	// that sets kill (spec.md §5/§7). <= 0 falls back to the spec's
	// documented default of 20.
	ErrorStreakThreshold int
}

// Run executes the full per-target lifecycle for tpl and returns the
// discovered, scored result.
func Run(ctx context.Context, sender Sender, tpl model.Template, opts Options, kill func() bool) model.Result {
	result := model.Result{URL: tpl.URL, Method: tpl.Method, Headers: tpl.Headers}

	guarded := newGuardedSender(sender, limits.NewTracker(opts.Budget), opts.ErrorStreakThreshold)
	sender = guarded
	kill = guarded.effectiveKill(kill)

	// A typed-nil *progress.Hub must never reach narrow.Options.Progress as
	// a non-nil interface value (it would panic on first use), so the
	// conversion only happens when opts.Progress is genuinely set.
	var progressReporter narrow.ProgressReporter
	if opts.Progress != nil {
		progressReporter = opts.Progress
	}

	rlog.Run("probing baseline for %s", tpl.URL)
	baseline, err := calibrate.Calibrate(ctx, sender, tpl, kill)
	if baseline == nil {
		rlog.Error("calibration failed for %s: %v", tpl.URL, err)
		result.Status = model.StatusSkipped
		return result
	}
	if err != nil {
		rlog.Warn("calibration unstable for %s: %v", tpl.URL, err)
	}
	result.Unhealthy = baseline.Unhealthy

	wordlist := opts.Wordlist
	if len(baseline.Body) > 0 {
		wordlist = append(append([]string(nil), wordlist...), extract.FromBody(string(baseline.Body))...)
		wordlist = append(wordlist, extract.GuessFromPath(tpl.URL)...)
	}

	populated := model.Populate(dedupe(wordlist))
	for name, sentinel := range opts.Special {
		populated[name] = sentinel
	}
	names := populated.SortedNames()

	chunkSize := opts.ChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}
	initial := narrow.InitialChunks(names, chunkSize)

	probeJunk := func(ctx context.Context) (model.Facet, bool) {
		return bruter.Verify(ctx, sender, tpl, baseline.Fingerprint, baseline.Significant, calibrate.RandomJunkName(), kill)
	}

	narrowOpts := narrow.Options{Threads: opts.Threads, Progress: progressReporter, URL: tpl.URL}
	outcome := narrow.Run(ctx, sender, tpl, baseline.Fingerprint, baseline.Significant, initial, narrowOpts, probeJunk, kill)
	if outcome.Skipped {
		rlog.Warn("narrowing skipped for %s", tpl.URL)
		result.Status = model.StatusSkipped
		return result
	}

	var candidates []model.Candidate
	for _, name := range outcome.LastParams {
		cand, ok := confirm.Candidate(ctx, sender, tpl, baseline.Fingerprint, baseline.Significant, name, kill)
		if !ok {
			continue
		}
		if opts.Explainer != nil {
			if rationale, err := opts.Explainer.Explain(ctx, tpl.URL, tpl.Method, cand); err == nil {
				cand.Rationale = rationale
			}
		}
		candidates = append(candidates, cand)
		rlog.Found("%s via %s (score %d, risk %s)", cand.Name, cand.Reason, cand.Score, cand.Risk)
		if opts.Progress != nil {
			opts.Progress.Candidate(tpl.URL, cand)
		}
	}

	result.Status = model.StatusOK
	result.Candidates = candidates

	if opts.Progress != nil {
		opts.Progress.TargetDone(tpl.URL, result)
	}
	return result
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
