package engine

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

// hitSender returns an anomalous response whenever the payload contains a
// hot name; everything else gets a stable baseline-matching response.
type hitSender struct {
	hot map[string]bool
}

func (s *hitSender) Send(_ context.Context, _ model.Template, payload model.Payload, _ func() bool) (*transport.Response, error) {
	for name := range payload {
		if s.hot[name] {
			return &transport.Response{StatusCode: 500, Header: http.Header{}, Body: []byte("error")}, nil
		}
	}
	return &transport.Response{StatusCode: 200, Header: http.Header{}, Body: []byte("stable baseline page")}, nil
}

func TestRunDiscoversHotParameter(t *testing.T) {
	sender := &hitSender{hot: map[string]bool{"debug": true}}
	tpl := model.Template{URL: "http://example.com/search", Method: model.MethodGET}

	result := Run(context.Background(), sender, tpl, Options{
		Wordlist:  []string{"admin", "debug", "page", "token"},
		ChunkSize: 2,
		Threads:   2,
	}, nil)

	require.Equal(t, model.StatusOK, result.Status)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "debug", result.Candidates[0].Name)
	assert.Equal(t, model.FacetStatus, result.Candidates[0].Reason)
}

func TestRunNoAnomalyYieldsEmptyCandidates(t *testing.T) {
	sender := &hitSender{hot: map[string]bool{}}
	tpl := model.Template{URL: "http://example.com/search", Method: model.MethodGET}

	result := Run(context.Background(), sender, tpl, Options{
		Wordlist:  []string{"a", "b", "c"},
		ChunkSize: 2,
		Threads:   1,
	}, nil)

	assert.Equal(t, model.StatusOK, result.Status)
	assert.Empty(t, result.Candidates)
}

func TestRunSkipsOnKillSignal(t *testing.T) {
	sender := &hitSender{hot: map[string]bool{"a": true, "b": true}}
	tpl := model.Template{URL: "http://example.com/search", Method: model.MethodGET}

	kill := func() bool { return true }
	result := Run(context.Background(), sender, tpl, Options{
		Wordlist:  []string{"a", "b"},
		ChunkSize: 1,
		Threads:   1,
	}, kill)

	assert.Equal(t, model.StatusSkipped, result.Status)
}

type erroringSender struct{}

func (erroringSender) Send(_ context.Context, _ model.Template, _ model.Payload, _ func() bool) (*transport.Response, error) {
	return nil, &transport.Error{Kind: transport.KindTimeout, Detail: "unreachable"}
}

func TestRunSkipsWhenCalibrationFailsOutright(t *testing.T) {
	tpl := model.Template{URL: "http://example.com/search", Method: model.MethodGET}

	result := Run(context.Background(), erroringSender{}, tpl, Options{Wordlist: []string{"a"}}, nil)
	assert.Equal(t, model.StatusSkipped, result.Status)
}

// streakSender answers calibrate's fixed two-probe-plus-junk-probe sequence
// with a stable 200 so calibration succeeds, then fails every later send
// with a connection-reset transport error, simulating the target dropping
// dead partway through narrowing (spec.md §8 scenario S6).
type streakSender struct {
	calls atomic.Int64
}

func (s *streakSender) Send(_ context.Context, _ model.Template, _ model.Payload, _ func() bool) (*transport.Response, error) {
	if s.calls.Add(1) <= 3 {
		return &transport.Response{StatusCode: 200, Header: http.Header{}, Body: []byte("stable baseline page")}, nil
	}
	return nil, &transport.Error{Kind: transport.KindConnection, Detail: "connection reset by peer"}
}

func TestRunAbortsAfterConsecutiveTransportErrorStreak(t *testing.T) {
	names := make([]string, 25)
	for i := range names {
		names[i] = string(rune('a'+i%26)) + "param"
	}
	tpl := model.Template{URL: "http://example.com/search", Method: model.MethodGET}

	result := Run(context.Background(), &streakSender{}, tpl, Options{
		Wordlist:  names,
		ChunkSize: 1,
		Threads:   5,
	}, nil)

	assert.Equal(t, model.StatusSkipped, result.Status)
}
