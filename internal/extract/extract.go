// Package extract pre-extracts candidate parameter names from a baseline
// response body and from the target URL's path shape (spec.md C4). These
// names are added to the wordlist before narrowing begins, the same way
// the original tool's heuristic plugin augments the candidate set.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// namePattern is the identifier shape spec.md §4.2 requires: letters/digits/
// underscore/hyphen, starting with a letter or underscore, max 64 chars.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]{0,63}$`)

var (
	queryParamPattern = regexp.MustCompile(`[?&]([A-Za-z_][A-Za-z0-9_\-]{0,63})=`)
	varAssignPattern  = regexp.MustCompile(`(?:var|let|const)\s+([A-Za-z_][A-Za-z0-9_]{0,63})\s*=`)
)

// FromBody returns the case-folded, deduplicated set of identifier-shaped
// names gleaned from form fields, query-string links, JSON object keys and
// `var x = ...` style assignments anywhere in body (spec.md §4.2).
func FromBody(body string) []string {
	found := make(map[string]bool)

	collectFormNames(body, found)
	collectLinkParams(body, found)
	collectJSONKeys(body, found)
	collectVarAssignments(body, found)

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	return names
}

func add(found map[string]bool, raw string) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" || !namePattern.MatchString(name) {
		return
	}
	found[name] = true
}

// collectFormNames mirrors the teacher's form_extractor.go input-scanning
// traversal, narrowed to just the `name` attribute instead of a full
// HTMLForm record.
func collectFormNames(body string, found map[string]bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return
	}
	doc.Find("input, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		if name, ok := sel.Attr("name"); ok {
			add(found, name)
		}
	})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		for _, m := range queryParamPattern.FindAllStringSubmatch(href, -1) {
			add(found, m[1])
		}
	})
}

func collectLinkParams(body string, found map[string]bool) {
	for _, m := range queryParamPattern.FindAllStringSubmatch(body, -1) {
		add(found, m[1])
	}
}

func collectJSONKeys(body string, found map[string]bool) {
	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return
	}
	var anything interface{}
	if err := json.Unmarshal([]byte(body[start:]), &anything); err != nil {
		return
	}
	walkJSON(anything, found)
}

func walkJSON(v interface{}, found map[string]bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, sub := range t {
			add(found, k)
			walkJSON(sub, found)
		}
	case []interface{}:
		for _, sub := range t {
			walkJSON(sub, found)
		}
	}
}

func collectVarAssignments(body string, found map[string]bool) {
	for _, m := range varAssignPattern.FindAllStringSubmatch(body, -1) {
		add(found, m[1])
	}
}
