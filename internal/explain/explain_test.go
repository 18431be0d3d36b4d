package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arjun-x/arjun-go/internal/model"
)

func TestBuildPromptMentionsCandidateDetails(t *testing.T) {
	req := &Request{
		URL:    "http://example.com/search",
		Method: model.MethodGET,
		Candidate: model.Candidate{
			Name:     "debug",
			Reason:   model.FacetStatus,
			Risk:     model.RiskHigh,
			Findings: []string{"SQL Error Triggered"},
		},
	}

	prompt := buildPrompt(req)
	assert.Contains(t, prompt, "debug")
	assert.Contains(t, prompt, "http://example.com/search")
	assert.Contains(t, prompt, "HIGH")
}
