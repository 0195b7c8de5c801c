package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	val string
	err error
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	return f.val, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(srv.URL), WithBackoff(time.Millisecond)}, opts...)
	c, err := NewClient(&fakeGetter{val: `{"token":"tvly-test"}`}, "/websearch/tavily-token", opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validates(t *testing.T) {
	_, err := NewClient(nil, "/p")
	require.Error(t, err)

	_, err = NewClient(&fakeGetter{}, " ")
	require.ErrorContains(t, err, "credential")
}

func TestSearch_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		var body searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, searchRequest{Query: "population of Paris", SearchDepth: "advanced", MaxResults: 3}, body)

		_, _ = w.Write([]byte(`{"query":"population of Paris","results":[
			{"title":"A","url":"https://a","content":"Paris is the capital","score":0.9},
			{"title":"B","url":"https://b","content":null,"score":0.5},
			{"title":"C","url":"https://c","content":"Population 2.1M","score":0.4,"raw_content":"full page"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithDepth("advanced"), WithMaxResults(3))
	results, err := c.Search(context.Background(), "  population of Paris ")
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, "Paris is the capital", *results[0].Content)
	require.Equal(t, "https://a", results[0].URL)
	require.Nil(t, results[1].Content)
	require.Equal(t, "B", results[1].Title)
	require.Equal(t, "full page", results[2].Metadata["raw_content"])
}

func TestSearch_CapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"content":"1"},{"content":"2"},{"content":"3"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxResults(2))
	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearch_EmptyResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	results, err := newTestClient(t, srv).Search(context.Background(), "q")
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestSearch_RetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"content":"ok"}]}`))
	}))
	defer srv.Close()

	results, err := newTestClient(t, srv).Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 3, calls)
}

func TestSearch_GivesUpAfterRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Search(context.Background(), "q")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	require.Equal(t, defaultRetries+1, calls)
}

func TestSearch_ServerErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Search(context.Background(), "q")
	require.ErrorContains(t, err, "500")
	require.Equal(t, 1, calls)
}

func TestSearch_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not-json"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Search(context.Background(), "q")
	require.ErrorContains(t, err, "decode response")
}

func TestSearch_EmptyQuery(t *testing.T) {
	c, err := NewClient(&fakeGetter{val: `{"token":"x"}`}, "/p")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "   ")
	require.ErrorContains(t, err, "query")
}

func TestSearch_CredentialError(t *testing.T) {
	c, err := NewClient(&fakeGetter{err: errors.New("ssm unavailable")}, "/p")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "q")
	require.ErrorContains(t, err, "ssm unavailable")
}
