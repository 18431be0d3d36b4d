package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBodyFormInputs(t *testing.T) {
	body := `<html><body><form action="/login"><input name="username"><input name="password"></form></body></html>`
	names := FromBody(body)
	assert.Contains(t, names, "username")
	assert.Contains(t, names, "password")
}

func TestFromBodyQueryLinks(t *testing.T) {
	body := `<a href="/search?q=test&debug=1">link</a>`
	names := FromBody(body)
	assert.Contains(t, names, "q")
	assert.Contains(t, names, "debug")
}

func TestFromBodyJSONKeys(t *testing.T) {
	body := `{"user_id": 1, "nested": {"token": "abc"}}`
	names := FromBody(body)
	assert.Contains(t, names, "user_id")
	assert.Contains(t, names, "token")
}

func TestFromBodyVarAssignments(t *testing.T) {
	body := `<script>var csrfToken = "abc123";</script>`
	names := FromBody(body)
	assert.Contains(t, names, "csrftoken")
}

func TestFromBodyRejectsNonIdentifierShapes(t *testing.T) {
	body := `<input name="this has spaces">`
	names := FromBody(body)
	assert.NotContains(t, names, "this has spaces")
}

func TestGuessFromPathResourceID(t *testing.T) {
	names := GuessFromPath("https://example.com/api/v1/users/42")
	assert.Contains(t, names, "id")
	assert.Contains(t, names, "user_id")
}

func TestGuessFromPathSkipsStaticAssets(t *testing.T) {
	names := GuessFromPath("https://example.com/static/app.js")
	assert.Nil(t, names)
}
