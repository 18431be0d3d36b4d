// Package transport issues the single HTTP request that every other
// component in the engine builds on (spec.md C1). It owns the waiting
// policy, the rolling rate ceiling, user-agent rotation, and the mapping
// of any transport failure into a typed error the orchestrator treats as
// "no information" rather than a crash.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arjun-x/arjun-go/internal/model"
)

// Kind classifies a transport-level failure.
type Kind string

const (
	KindKilled     Kind = "killed"
	KindDNS        Kind = "dns"
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindTLS        Kind = "tls"
	KindOther      Kind = "other"
)

// Error is the tagged sum type spec.md's design notes call for in place of
// "response or error string": callers type-switch on Kind instead of
// sniffing a string.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s: %s", e.Kind, e.Detail)
}

func classify(err error) *Error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no such host"), strings.Contains(lower, "name resolution"):
		return &Error{Kind: KindDNS, Detail: msg}
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return &Error{Kind: KindTimeout, Detail: msg}
	case strings.Contains(lower, "connection reset"), strings.Contains(lower, "connection refused"), strings.Contains(lower, "eof"):
		return &Error{Kind: KindConnection, Detail: msg}
	case strings.Contains(lower, "tls"), strings.Contains(lower, "certificate"):
		return &Error{Kind: KindTLS, Detail: msg}
	default:
		return &Error{Kind: KindOther, Detail: msg}
	}
}

// Response is the minimal shape the fingerprinter needs; it is decoupled
// from *http.Response so tests can construct one directly.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// WaitPolicy selects the delay applied before a request per spec.md §4.1's
// priority order: stable, then stealth, then a fixed delay.
type WaitPolicy struct {
	Stable  bool
	Stealth bool
	Delay   time.Duration
}

func (w WaitPolicy) sleep() {
	switch {
	case w.Stable:
		time.Sleep(time.Duration(3+rand.Intn(8)) * time.Second)
	case w.Stealth:
		jitter := 0.5 + rand.Float64()*2.0
		time.Sleep(time.Duration(jitter * float64(time.Second)))
	case w.Delay > 0:
		time.Sleep(w.Delay)
	}
}

// RateLimiter enforces a rolling N-requests-per-second ceiling shared by
// every worker. It is safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  []time.Time
}

// NewRateLimiter builds a limiter allowing up to limit requests in any
// rolling one-second window. limit <= 0 disables the ceiling.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{limit: limit}
}

// Wait blocks until a slot is available, then records the send.
func (r *RateLimiter) Wait() {
	if r == nil || r.limit <= 0 {
		return
	}
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Second)
		kept := r.window[:0]
		for _, t := range r.window {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.window = kept
		if len(r.window) < r.limit {
			r.window = append(r.window, now)
			r.mu.Unlock()
			return
		}
		oldest := r.window[0]
		r.mu.Unlock()
		time.Sleep(oldest.Add(time.Second).Sub(now))
	}
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

func randomUserAgent() string {
	return defaultUserAgents[rand.Intn(len(defaultUserAgents))]
}

// Client sends requests built from a model.Template. It wraps a shared
// *http.Client (the "connection pool... safe for concurrent use" spec.md
// §5 requires) plus the waiting policy and rate ceiling.
type Client struct {
	HTTP    *http.Client
	Wait    WaitPolicy
	Limiter *RateLimiter
	Timeout time.Duration
}

// New builds a Client that never follows redirects, per spec.md §4.1.
func New(timeout time.Duration, wait WaitPolicy, limiter *RateLimiter) *Client {
	return &Client{
		HTTP: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Wait:    wait,
		Limiter: limiter,
		Timeout: timeout,
	}
}

// Send builds the final HTTP message for tpl+payload and issues it. kill
// is checked first, per spec.md §5's cancellation boundary: "before each
// request."
func (c *Client) Send(ctx context.Context, tpl model.Template, payload model.Payload, kill func() bool) (*Response, error) {
	if kill != nil && kill() {
		return nil, &Error{Kind: KindKilled, Detail: "killed before send"}
	}

	c.Wait.sleep()

	if kill != nil && kill() {
		return nil, &Error{Kind: KindKilled, Detail: "killed before send"}
	}
	c.Limiter.Wait()

	effective := payload.Merge(tpl.IncludeMap)

	req, err := buildRequest(ctx, tpl, effective)
	if err != nil {
		return nil, &Error{Kind: KindOther, Detail: err.Error()}
	}

	headers := randomizeHeaders(tpl.Headers)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	applyContentType(req, tpl.Method)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func randomizeHeaders(base map[string]string) map[string]string {
	headers := make(map[string]string, len(base)+1)
	for k, v := range base {
		headers[k] = v
	}
	if ua, ok := headers["User-Agent"]; !ok || ua == "" || ua == "Arjun" {
		headers["User-Agent"] = randomUserAgent()
	}
	return headers
}

func applyContentType(req *http.Request, method model.Method) {
	switch method {
	case model.MethodPostJSON:
		req.Header.Set("Content-Type", "application/json")
	case model.MethodPostXML:
		req.Header.Set("Content-Type", "application/xml")
	case model.MethodPostForm:
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
}

func buildRequest(ctx context.Context, tpl model.Template, payload model.Payload) (*http.Request, error) {
	switch tpl.Method {
	case model.MethodGET:
		u, err := url.Parse(tpl.URL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for _, name := range payload.SortedNames() {
			q.Set(name, payload[name])
		}
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)

	case model.MethodPostJSON:
		body := jsonBody(tpl.Include, payload)
		return http.NewRequestWithContext(ctx, http.MethodPost, tpl.URL, strings.NewReader(body))

	case model.MethodPostXML:
		body := xmlBody(tpl.Include, payload)
		return http.NewRequestWithContext(ctx, http.MethodPost, tpl.URL, strings.NewReader(body))

	default: // POST_FORM
		values := url.Values{}
		for _, name := range payload.SortedNames() {
			values.Set(name, payload[name])
		}
		return http.NewRequestWithContext(ctx, http.MethodPost, tpl.URL, strings.NewReader(values.Encode()))
	}
}

// jsonBody implements the §4.1 POST_JSON contract: if Include contains the
// "$arjun$" placeholder, the payload is serialized and spliced in with its
// outer braces stripped; otherwise the payload itself is the whole body.
func jsonBody(include string, payload model.Payload) string {
	if include != "" && strings.Contains(include, "$arjun$") {
		raw, _ := json.Marshal(payload)
		inner := strings.TrimSuffix(strings.TrimPrefix(string(raw), "{"), "}")
		return strings.ReplaceAll(include, "$arjun$", inner)
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

// xmlBody implements the §4.1/§9 POST_XML contract: one element per key;
// if Include is absent, fall back to the raw XML fragment (spec.md §9
// Open Question resolution).
func xmlBody(include string, payload model.Payload) string {
	fragment := dictToXML(payload)
	if include == "" {
		return fragment
	}
	if strings.Contains(include, "$arjun$") {
		return strings.ReplaceAll(include, "$arjun$", fragment)
	}
	return fragment
}

func dictToXML(payload model.Payload) string {
	var buf bytes.Buffer
	for _, name := range payload.SortedNames() {
		fmt.Fprintf(&buf, "<%s>%s</%s>", name, escapeXML(payload[name]), name)
	}
	return buf.String()
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}
