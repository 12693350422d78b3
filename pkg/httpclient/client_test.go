package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchReturnsBodyOnSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = fmt.Fprint(w, `  {"result": [1, 2]}  `)
	}))
	defer server.Close()

	data, err := NewClient().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":[1,2]}`, string(data))
}

func TestFetchNon2xxCarriesStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests, http.StatusBadGateway} {
		status := status
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = fmt.Fprint(w, `{"message":"nope"}`)
			}))
			defer server.Close()

			_, err := NewClient().Fetch(context.Background(), server.URL)
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, status, httpErr.Status)
			assert.Equal(t, `{"message":"nope"}`, httpErr.Body)
		})
	}
}

func TestFetchRejectsNonJSON(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"html":      "<html><body>maintenance</body></html>",
		"truncated": `{"result": [`,
		"empty":     "",
	}

	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, body)
			}))
			defer server.Close()

			_, err := NewClient().Fetch(context.Background(), server.URL)
			var formatErr *FormatError
			require.True(t, errors.As(err, &formatErr), "got %v", err)
		})
	}
}

func TestFormatErrorSnippetIsTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, long)
	}))
	defer server.Close()

	_, err := NewClient().Fetch(context.Background(), server.URL)
	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Len(t, formatErr.Snippet, snippetLimit)
}

func TestFetchJSONDecodes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"result":"abc"}`)
	}))
	defer server.Close()

	var out struct {
		Result string `json:"result"`
	}
	require.NoError(t, NewClient().FetchJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "abc", out.Result)
}
