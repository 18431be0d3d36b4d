package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjun-x/arjun-go/internal/model"
)

func newTestClient() *Client {
	return New(5*time.Second, WaitPolicy{}, NewRateLimiter(0))
}

func TestSendGETMergesQueryAndPayload(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClient()
	tpl := model.Template{URL: srv.URL + "?existing=1", Method: model.MethodGET, Headers: map[string]string{}}
	resp, err := c.Send(context.Background(), tpl, model.Payload{"foo": "bar"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, gotQuery, "existing=1")
	assert.Contains(t, gotQuery, "foo=bar")
}

func TestSendNeverFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient()
	tpl := model.Template{URL: srv.URL, Method: model.MethodGET, Headers: map[string]string{}}
	resp, err := c.Send(context.Background(), tpl, model.Payload{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestSendPostJSONWithIncludeTemplate(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClient()
	tpl := model.Template{
		URL:     srv.URL,
		Method:  model.MethodPostJSON,
		Headers: map[string]string{},
		Include: `{"wrapper": true, $arjun$}`,
	}
	_, err := c.Send(context.Background(), tpl, model.Payload{"name": "val"}, nil)
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"wrapper": true`)
	assert.Contains(t, gotBody, `"name":"val"`)
}

func TestSendPostXMLFallsBackToFragmentWithoutInclude(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClient()
	tpl := model.Template{URL: srv.URL, Method: model.MethodPostXML, Headers: map[string]string{}}
	_, err := c.Send(context.Background(), tpl, model.Payload{"name": "val"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<name>val</name>", gotBody)
}

func TestSendKilledBeforeSend(t *testing.T) {
	c := newTestClient()
	tpl := model.Template{URL: "http://example.invalid", Method: model.MethodGET, Headers: map[string]string{}}
	_, err := c.Send(context.Background(), tpl, model.Payload{}, func() bool { return true })
	require.Error(t, err)
	terr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindKilled, terr.Kind)
}

func TestSendClassifiesTransportErrors(t *testing.T) {
	c := New(10*time.Millisecond, WaitPolicy{}, NewRateLimiter(0))
	tpl := model.Template{URL: "http://10.255.255.1/", Method: model.MethodGET, Headers: map[string]string{}}
	_, err := c.Send(context.Background(), tpl, model.Payload{}, nil)
	require.Error(t, err)
	_, ok := err.(*Error)
	assert.True(t, ok)
}

func TestRateLimiterCapsThroughput(t *testing.T) {
	rl := NewRateLimiter(2)
	start := time.Now()
	rl.Wait()
	rl.Wait()
	rl.Wait() // third call in the same second must block
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(900))
}

func TestUserAgentRotationRespectsCallerOverride(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClient()
	tpl := model.Template{URL: srv.URL, Method: model.MethodGET, Headers: map[string]string{"User-Agent": "MyCustomAgent"}}
	_, err := c.Send(context.Background(), tpl, model.Payload{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "MyCustomAgent", gotUA)
}
