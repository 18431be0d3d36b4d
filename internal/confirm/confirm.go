// Package confirm is the final stage of the pipeline (spec.md C7): it
// re-verifies each singleton survivor, scores it, bands its risk, and
// fires the two probe payloads that turn a bare name into an annotated
// finding.
package confirm

import (
	"context"
	"regexp"
	"strings"

	"github.com/arjun-x/arjun-go/internal/bruter"
	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

// Sender is the transport seam confirm needs.
type Sender interface {
	Send(ctx context.Context, tpl model.Template, payload model.Payload, kill func() bool) (*transport.Response, error)
}

var highValueKeywords = []string{"id", "user", "admin", "debug", "file", "path", "redirect", "url", "cmd", "exec"}
var mediumValueKeywords = []string{"page", "view", "sort", "order", "key", "token", "auth"}

const reflectionProbeValue = `ArjunTest<>"'`
const sqlProbeValue = `'`

// Confirm re-verifies name in isolation (spec.md §4.6 step 1): if the
// singleton no longer diverges from baseline, it is a stale survivor from
// an earlier round and is discarded rather than reported.
func Confirm(ctx context.Context, sender Sender, tpl model.Template, baseline model.Fingerprint, sig model.SignificantSet, name string, kill func() bool) (model.Facet, bool) {
	return bruter.Verify(ctx, sender, tpl, baseline, sig, name, kill)
}

// Score implements spec.md §4.6 step 2's exact formula.
func Score(name string, reflected, sqlTriggered bool) int {
	score := 10
	lower := strings.ToLower(name)
	if containsAny(lower, highValueKeywords) {
		score += 40
	} else if containsAny(lower, mediumValueKeywords) {
		score += 20
	}
	if reflected {
		score += 50
	}
	if sqlTriggered {
		score += 30
	}
	return score
}

func containsAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// Risk bands score per spec.md §4.6 step 2.
func Risk(score int) model.Risk {
	switch {
	case score >= 80:
		return model.RiskCritical
	case score >= 50:
		return model.RiskHigh
	case score >= 30:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Probe fires the two spec-mandated single-shot probes (spec.md §4.6 step
// 3) and layers on the broader stack/SQL-trace heuristics the teacher's
// finding triage already carried, so a confirmed parameter's findings list
// surfaces more than just the two literal sentinel checks.
func Probe(ctx context.Context, sender Sender, tpl model.Template, name string, kill func() bool) (findings []string, reflected, sqlTriggered bool) {
	if resp, err := sendSingle(ctx, sender, tpl, name, reflectionProbeValue, kill); err == nil {
		body := string(resp.Body)
		if strings.Contains(body, reflectionProbeValue) {
			reflected = true
			findings = append(findings, "Reflected Input (Potential XSS)")
		}
		if containsErrorTrace(body) {
			findings = append(findings, "Stack Trace Disclosure")
		}
	}

	if resp, err := sendSingle(ctx, sender, tpl, name, sqlProbeValue, kill); err == nil {
		body := strings.ToLower(string(resp.Body))
		if strings.Contains(body, "syntax error") || strings.Contains(body, "sql") {
			sqlTriggered = true
			findings = append(findings, "SQL Error Triggered")
		} else if containsSQLError(body) {
			// Broader vendor-specific SQL error signature that the
			// literal "syntax error"/"sql" check above missed.
			sqlTriggered = true
			findings = append(findings, "SQL Error Triggered")
		}
	}

	return findings, reflected, sqlTriggered
}

func sendSingle(ctx context.Context, sender Sender, tpl model.Template, name, value string, kill func() bool) (*transport.Response, error) {
	payload := model.Payload{name: value}
	return sender.Send(ctx, tpl, payload, kill)
}

// containsErrorTrace flags stack-trace disclosure across the JVM, Python
// and generic runtimes a confirmed parameter's probe response might leak.
func containsErrorTrace(body string) bool {
	patterns := []string{
		"at java.",
		"at org.",
		"at com.",
		"traceback (most recent call last)",
		`file "/`,
		"exception in thread",
		"stack trace:",
	}
	lower := strings.ToLower(body)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var sqlErrorPatterns = []string{
	"sql syntax",
	"mysql_",
	"postgresql",
	"ora-[0-9]+",
	"sqlite",
	"syntax error at or near",
	"unclosed quotation mark",
	"quoted string not properly terminated",
	"invalid column name",
	"table or view does not exist",
	"ambiguous column name",
}

// containsSQLError checks the broader vendor-error signature set beyond
// the spec's literal "syntax error"/"sql" substrings; body is expected
// already lowercased.
func containsSQLError(body string) bool {
	for _, p := range sqlErrorPatterns {
		matched, _ := regexp.MatchString(p, body)
		if matched {
			return true
		}
	}
	return false
}

// Candidate runs the full C7 pipeline for one singleton and returns the
// confirmed, scored, probed record, or ok=false if confirmation failed.
func Candidate(ctx context.Context, sender Sender, tpl model.Template, baseline model.Fingerprint, sig model.SignificantSet, name string, kill func() bool) (model.Candidate, bool) {
	reason, ok := Confirm(ctx, sender, tpl, baseline, sig, name, kill)
	if !ok {
		return model.Candidate{}, false
	}

	findings, reflected, sqlTriggered := Probe(ctx, sender, tpl, name, kill)
	score := Score(name, reflected, sqlTriggered)

	return model.Candidate{
		Name:     name,
		Reason:   reason,
		Score:    score,
		Risk:     Risk(score),
		Findings: findings,
	}, true
}
