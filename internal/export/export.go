// Package export writes a completed run's results to the sinks spec.md §6
// names — JSON, plain text, HTML, and Burp Suite proxy replay — mirroring
// the original tool's exporter.py one function per format.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/arjun-x/arjun-go/internal/model"
)

// Report is the top-level document every sink renders: one run's results
// across every target, tagged with a unique run ID so repeated runs never
// collide in a shared output directory.
type Report struct {
	RunID   string         `json:"run_id"`
	Results []model.Result `json:"results"`
}

// NewReport stamps results with a fresh run ID.
func NewReport(results []model.Result) Report {
	return Report{RunID: uuid.NewString(), Results: results}
}

// JSON writes report to path as indented, key-sorted JSON (Go's
// json.Marshal already sorts map keys; struct field order is source
// order, matching the original's sort_keys=True intent for the parts that
// matter).
func JSON(report Report, path string) error {
	raw, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return fmt.Errorf("export: marshal json: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// Text writes one line per target: the URL followed by the query-string-encoded
// parameter names (or a JSON body for POST_JSON targets), matching
// exporter.py's text_export.
func Text(report Report, path string) error {
	var buf strings.Builder
	for _, r := range report.Results {
		clean := strings.TrimPrefix(r.URL, "/")
		names := candidateNames(r.Candidates)

		if r.Method == model.MethodPostJSON {
			payload := model.Populate(names)
			raw, _ := json.Marshal(payload)
			fmt.Fprintf(&buf, "%s\t%s\n", clean, raw)
			continue
		}

		qs := queryString(names)
		switch r.Method {
		case model.MethodGET:
			if strings.Contains(clean, "?") {
				qs = strings.Replace(qs, "?", "&", 1)
			}
			fmt.Fprintf(&buf, "%s%s\n", clean, qs)
		default:
			fmt.Fprintf(&buf, "%s\t%s\n", clean, qs)
		}
	}
	return os.WriteFile(path, []byte(buf.String()), 0o644)
}

func candidateNames(cands []model.Candidate) []string {
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Name
	}
	return names
}

func queryString(names []string) string {
	if len(names) == 0 {
		return ""
	}
	payload := model.Populate(names)
	values := url.Values{}
	for _, name := range payload.SortedNames() {
		values.Set(name, payload[name])
	}
	return "?" + values.Encode()
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Parameter Discovery Report</title>
<style>
body { font-family: sans-serif; margin: 20px; background: #f0f0f0; }
.container { max-width: 1000px; margin: auto; background: white; padding: 20px; border-radius: 8px; }
.target { margin-bottom: 30px; border: 1px solid #ddd; padding: 15px; border-radius: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 10px; }
th, td { padding: 10px; text-align: left; border-bottom: 1px solid #eee; }
.risk-CRITICAL { color: #d32f2f; font-weight: bold; }
.risk-HIGH { color: #f57c00; font-weight: bold; }
.risk-MEDIUM { color: #fbc02d; font-weight: bold; }
.risk-LOW { color: #388e3c; font-weight: bold; }
</style>
</head>
<body>
<div class="container">
<h1>Parameter Discovery Report</h1>
{{range .Results}}
<div class="target">
<h2>{{.Method}} {{.URL}}</h2>
<table>
<thead><tr><th>Parameter</th><th>Risk</th><th>Score</th><th>Findings</th></tr></thead>
<tbody>
{{range .Candidates}}<tr><td>{{.Name}}</td><td class="risk-{{.Risk}}">{{.Risk}}</td><td>{{.Score}}</td><td>{{range .Findings}}{{.}} {{end}}</td></tr>
{{end}}</tbody>
</table>
</div>
{{end}}
</div>
</body>
</html>
`))

// HTML renders report through htmlTemplate, matching exporter.py's
// html_export layout.
func HTML(report Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()
	return htmlTemplate.Execute(f, report)
}

// BurpReplayer is the transport seam Burp export needs: one request per
// confirmed candidate set, routed through the configured proxy.
type BurpReplayer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Burp replays every target's confirmed parameter set through client —
// typically an *http.Client whose Transport routes through the configured
// Burp proxy address (see NormalizeProxyAddr) — so the findings show up in
// Burp's HTTP history for manual follow-up, matching exporter.py's
// burp_export.
func Burp(ctx context.Context, client BurpReplayer, report Report) error {
	for _, r := range report.Results {
		names := candidateNames(r.Candidates)
		if len(names) == 0 {
			continue
		}
		req, err := burpRequest(ctx, r, names)
		if err != nil {
			return fmt.Errorf("export: build burp request for %s: %w", r.URL, err)
		}
		for k, v := range r.Headers {
			req.Header.Set(k, v)
		}
		if _, err := client.Do(req); err != nil {
			return fmt.Errorf("export: replay %s via burp: %w", r.URL, err)
		}
	}
	return nil
}

func burpRequest(ctx context.Context, r model.Result, names []string) (*http.Request, error) {
	payload := model.Populate(names)

	switch r.Method {
	case model.MethodGET:
		u, err := url.Parse(r.URL)
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
		raw, _ := json.Marshal(payload)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, strings.NewReader(string(raw)))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, err

	default: // POST_FORM / POST_XML replay as a form body, matching the original's GET/POST-only burp_export
		values := url.Values{}
		for _, name := range payload.SortedNames() {
			values.Set(name, payload[name])
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		return req, err
	}
}

// NormalizeProxyAddr prefixes addr with the default host when the caller
// supplied only a port, matching exporter.py's `('' if ':' in ... else
// '127.0.0.1:') + burp_proxy` logic.
func NormalizeProxyAddr(addr string) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return "127.0.0.1:" + addr
}
