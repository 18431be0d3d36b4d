// Package fingerprint computes the multi-facet response fingerprint
// (spec.md C2) that every later comparison in the engine is built on.
package fingerprint

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

var wordSplit = regexp.MustCompile(`[A-Za-z0-9_]+`)

// selectedHeaders are the response headers carried into the fingerprint;
// everything else (Date, Set-Cookie nonces, etc.) is noise the calibrator
// would just prune anyway, so they are excluded up front.
var selectedHeaders = []string{"Content-Type", "Server", "X-Powered-By", "Cache-Control"}

// Compute builds the fingerprint for one response. payload is the sentinel
// map that produced the response; it is used only for the reflections
// facet — the spec requires comparing "whether the sentinel values of THIS
// payload appear," never the raw set of all possible reflected values.
func Compute(resp *transport.Response, payload model.Payload) model.Fingerprint {
	body := string(resp.Body)

	return model.Fingerprint{
		Status:      resp.StatusCode,
		Length:      len(resp.Body),
		BodyWords:   wordHistogram(body),
		Tags:        tagHistogram(body),
		Headers:     selectedHeaderValues(resp.Header),
		Reflections: reflections(body, payload),
	}
}

func wordHistogram(body string) map[string]int {
	hist := make(map[string]int)
	for _, w := range wordSplit.FindAllString(body, -1) {
		hist[strings.ToLower(w)]++
	}
	return hist
}

func tagHistogram(body string) map[string]int {
	hist := make(map[string]int)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return hist
	}
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		hist[goquery.NodeName(sel)]++
	})
	return hist
}

func selectedHeaderValues(h map[string][]string) map[string]string {
	out := make(map[string]string, len(selectedHeaders))
	for _, key := range selectedHeaders {
		if vals, ok := h[key]; ok && len(vals) > 0 {
			out[key] = vals[0]
		} else if vals, ok := h[strings.ToLower(key)]; ok && len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}

// LengthTolerance is the relative tolerance (epsilon) used when comparing
// the length facet: |Δ|/max <= epsilon counts as "equal" (spec.md §4.3).
const LengthTolerance = 0.02

// Equal reports whether two fingerprints agree on facet f, using a
// relative tolerance for length and exact equality for everything else.
func Equal(a, b model.Fingerprint, f model.Facet) bool {
	switch f {
	case model.FacetStatus:
		return a.Status == b.Status
	case model.FacetLength:
		return lengthsAgree(a.Length, b.Length)
	case model.FacetTags:
		return intMapsEqual(a.Tags, b.Tags)
	case model.FacetHeaders:
		return stringMapsEqual(a.Headers, b.Headers)
	case model.FacetBodyWords:
		return intMapsEqual(a.BodyWords, b.BodyWords)
	case model.FacetReflections:
		// Special case per spec: never compare the raw reflection sets
		// (a and b were built from different payloads with different
		// sentinel keys). Only ask whether THIS payload's own sentinel
		// values turned up — baseline, by construction, never contains
		// these names, so "none reflected" is the only baseline-equal
		// state.
		return !anyTrue(b.Reflections)
	default:
		return true
	}
}

func lengthsAgree(a, b int) bool {
	if a == b {
		return true
	}
	max := a
	if b > max {
		max = b
	}
	if max == 0 {
		return true
	}
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	return float64(delta)/float64(max) <= LengthTolerance
}

func intMapsEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func stringMapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func anyTrue(m map[string]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

// Diff returns the first facet in sig on which a and b differ, walking
// model.FacetOrder for a stable, deterministic result. It returns ("", false)
// when the two fingerprints are indistinguishable on every significant facet.
func Diff(base, other model.Fingerprint, sig model.SignificantSet) (model.Facet, bool) {
	for _, f := range model.FacetOrder {
		if !sig[f] {
			continue
		}
		if !Equal(base, other, f) {
			return f, true
		}
	}
	return "", false
}

func reflections(body string, payload model.Payload) map[string]bool {
	out := make(map[string]bool, len(payload))
	for _, name := range payload.SortedNames() {
		out[payload[name]] = strings.Contains(body, payload[name])
	}
	return out
}
