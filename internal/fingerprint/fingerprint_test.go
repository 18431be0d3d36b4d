package fingerprint

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/transport"
)

func TestComputeBasicFacets(t *testing.T) {
	resp := &transport.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte("<html><body><p>hello world</p></body></html>"),
	}
	fp := Compute(resp, model.Payload{})
	assert.Equal(t, 200, fp.Status)
	assert.Equal(t, len(resp.Body), fp.Length)
	assert.Equal(t, "text/html", fp.Headers["Content-Type"])
	assert.Equal(t, 1, fp.Tags["p"])
	assert.Equal(t, 1, fp.BodyWords["hello"])
}

func TestReflectionsOnlyCoverThisPayload(t *testing.T) {
	resp := &transport.Response{StatusCode: 200, Body: []byte("echo: Mozilla/5.0 custom-agent and nuoj")}
	fp := Compute(resp, model.Payload{"foo": "nuoj"})
	assert.True(t, fp.Reflections["nuoj"])
	assert.Len(t, fp.Reflections, 1)
}

func TestLengthToleranceTreatsSmallDeltasAsEqual(t *testing.T) {
	a := model.Fingerprint{Length: 1000}
	b := model.Fingerprint{Length: 1010} // 1% delta
	assert.True(t, Equal(a, b, model.FacetLength))

	c := model.Fingerprint{Length: 1100} // 10% delta
	assert.False(t, Equal(a, c, model.FacetLength))
}

func TestDiffReturnsFirstFacetInStableOrder(t *testing.T) {
	sig := model.SignificantSet{model.FacetStatus: true, model.FacetLength: true}
	base := model.Fingerprint{Status: 200, Length: 100}
	other := model.Fingerprint{Status: 500, Length: 999}

	facet, ok := Diff(base, other, sig)
	assert.True(t, ok)
	assert.Equal(t, model.FacetStatus, facet)
}

func TestDiffIndistinguishableReturnsFalse(t *testing.T) {
	sig := model.SignificantSet{model.FacetStatus: true}
	base := model.Fingerprint{Status: 200}
	other := model.Fingerprint{Status: 200}

	_, ok := Diff(base, other, sig)
	assert.False(t, ok)
}
