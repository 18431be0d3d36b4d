// Package explain optionally turns a confirmed Candidate into a short
// human-readable rationale using a genkit flow, gated behind
// config.Ambient.ExplainEnabled. The core engine never imports this
// package's New without checking the gate first, so a run with no API key
// configured never touches genkit at all.
package explain

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	genkitcore "github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/arjun-x/arjun-go/internal/model"
)

// Request is the input to the rationale flow: just enough of the
// confirmed candidate and its target to prompt a useful explanation.
type Request struct {
	URL       string          `json:"url"`
	Method    model.Method    `json:"method"`
	Candidate model.Candidate `json:"candidate"`
}

// Response is the flow's structured output.
type Response struct {
	Rationale string `json:"rationale"`
}

// Explainer wraps one initialized genkit app and its rationale flow.
type Explainer struct {
	app   *genkit.Genkit
	model string
	flow  *genkitcore.Flow[*Request, *Response, struct{}]
}

// New initializes genkit with the Google AI plugin and defines the
// rationale flow. Callers must check config.Ambient.ExplainEnabled before
// calling this — it is not itself gated.
func New(ctx context.Context, apiKey, modelName string) *Explainer {
	app := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: apiKey}),
		genkit.WithDefaultModel(modelName),
	)

	e := &Explainer{app: app, model: modelName}
	e.flow = genkit.DefineFlow(app, "candidateRationaleFlow",
		func(ctx context.Context, req *Request) (*Response, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("explain: context cancelled before rationale: %w", err)
			}

			prompt := buildPrompt(req)
			result, _, err := genkit.GenerateData[Response](
				ctx, app,
				ai.WithModelName(modelName),
				ai.WithPrompt(prompt),
			)
			if err != nil {
				return nil, fmt.Errorf("explain: rationale generation failed: %w", err)
			}
			return result, nil
		},
	)
	return e
}

func buildPrompt(req *Request) string {
	return fmt.Sprintf(
		`You are a web application security reviewer. A parameter discovery run
found the hidden parameter %q on %s %s (discriminating facet: %s, risk: %s,
findings: %v). In two sentences, explain to a developer why this parameter
is worth manually reviewing.`,
		req.Candidate.Name, req.Method, req.URL, req.Candidate.Reason, req.Candidate.Risk, req.Candidate.Findings,
	)
}

// Explain runs the rationale flow for one confirmed candidate and returns
// the model's explanation text.
func (e *Explainer) Explain(ctx context.Context, url string, method model.Method, cand model.Candidate) (string, error) {
	resp, err := e.flow.Run(ctx, &Request{URL: url, Method: method, Candidate: cand})
	if err != nil {
		return "", err
	}
	return resp.Rationale, nil
}
