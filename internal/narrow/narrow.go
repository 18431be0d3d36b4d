// Package narrow implements the bounded worker-pool bisection round that
// whittles chunks of candidate names down to confirmed singletons
// (spec.md C6).
package narrow

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arjun-x/arjun-go/internal/bruter"
	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

// Sender is the transport seam narrow needs.
type Sender interface {
	Send(ctx context.Context, tpl model.Template, payload model.Payload, kill func() bool) (*transport.Response, error)
}

// ProgressReporter is the round-boundary broadcast seam; *progress.Hub
// satisfies it. Left nil, Run simply never calls it.
type ProgressReporter interface {
	RoundStart(url string, round, pending int)
	RoundDone(url string, round, pending, survivors int)
}

// Options configures one narrowing run. Threads is forced to 1 by the
// caller when stability/delay modes are active (spec.md §5).
type Options struct {
	Threads  int
	Progress ProgressReporter // optional; broadcasts per-round events
	URL      string           // target URL, forwarded to Progress calls
}

// Outcome is what one full narrowing run produces for a target.
type Outcome struct {
	LastParams []string // singleton survivors, ready for C7 confirmation
	Skipped    bool     // true if the run was cancelled or aborted for instability
}

// junkProbe re-runs a random junk name against baseline to sanity-check
// that the page hasn't gone noisy mid-run (spec.md §4.5's instability
// guard).
type junkProbe func(ctx context.Context) (model.Facet, bool)

// Run drives the round loop described in spec.md §4.5: each round submits
// every pending chunk to a bounded worker pool, halves whatever chunk
// provoked a diff, discards whatever didn't, and drains singletons into
// last_params. It stops when no non-singleton chunk remains, when kill
// fires, or when the instability guard trips.
func Run(
	ctx context.Context,
	sender Sender,
	tpl model.Template,
	baseline model.Fingerprint,
	sig model.SignificantSet,
	initial []model.Chunk,
	opts Options,
	probeJunk junkProbe,
	kill func() bool,
) Outcome {
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	pending := append([]model.Chunk(nil), initial...)
	var lastParams []string
	round := 0

	for len(pending) > 0 {
		if kill != nil && kill() {
			return Outcome{LastParams: lastParams, Skipped: true}
		}

		round++
		if opts.Progress != nil {
			opts.Progress.RoundStart(opts.URL, round, len(pending))
		}

		before := len(pending)
		results := runRound(ctx, sender, tpl, baseline, sig, pending, threads, kill)

		var next []model.Chunk
		roundSurvivors := 0
		for _, r := range results {
			if !r.diverged {
				continue
			}
			if len(r.chunk) == 1 {
				lastParams = append(lastParams, r.chunk[0])
				roundSurvivors++
				continue
			}
			left, right := r.chunk.Split()
			if len(left) > 0 {
				next = append(next, left)
			}
			if len(right) > 0 {
				next = append(next, right)
			}
		}

		if opts.Progress != nil {
			opts.Progress.RoundDone(opts.URL, round, len(next), roundSurvivors)
		}

		if kill != nil && kill() {
			return Outcome{LastParams: lastParams, Skipped: true}
		}

		if len(next) > before && probeJunk != nil {
			if _, diverged := probeJunk(ctx); diverged {
				return Outcome{LastParams: lastParams, Skipped: true}
			}
		}

		pending = next
	}

	return Outcome{LastParams: lastParams}
}

type chunkResult struct {
	chunk    model.Chunk
	diverged bool
}

// runRound submits every chunk in the round to a worker pool of the
// configured size and buffers results in completion order; ordering of the
// *next* round is reconstructed from the submission order below, not
// completion order, since chunk identity (not arrival order) decides
// correctness (spec.md §5).
func runRound(
	ctx context.Context,
	sender Sender,
	tpl model.Template,
	baseline model.Fingerprint,
	sig model.SignificantSet,
	chunks []model.Chunk,
	threads int,
	kill func() bool,
) []chunkResult {
	results := make([]chunkResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	var mu sync.Mutex
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			_, diverged := bruter.Bruter(gctx, sender, tpl, baseline, sig, chunk, kill)
			mu.Lock()
			results[i] = chunkResult{chunk: chunk, diverged: diverged}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // bruter.Bruter never returns an error; transport failures collapse to ⊥

	return results
}

// InitialChunks partitions names into equal-sized chunks of size
// chunkSize, per spec.md §4.5's initial partition.
func InitialChunks(names []string, chunkSize int) []model.Chunk {
	if chunkSize < 1 {
		chunkSize = 1
	}
	var chunks []model.Chunk
	for i := 0; i < len(names); i += chunkSize {
		end := i + chunkSize
		if end > len(names) {
			end = len(names)
		}
		chunks = append(chunks, model.Chunk(append([]string(nil), names[i:end]...)))
	}
	return chunks
}
