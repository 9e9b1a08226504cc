package vcs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPerforceHost_Validation(t *testing.T) {
	_, err := NewPerforceHost("", "u", "t")
	assert.Error(t, err)
	_, err = NewPerforceHost("http://swarm", "", "t")
	assert.Error(t, err)
}

func TestPerforceHost_CreateReview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v9/reviews", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "ticket", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Fix: Crash\n\nPROJ-1: Automated fix", r.PostForm.Get("description"))
		assert.Equal(t, []string{"//depot/a.c", "//depot/b.c"}, r.PostForm["files[]"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"review":{"id":1234}}`)
	}))
	defer server.Close()

	host, err := NewPerforceHost(server.URL+"/", "alice", "ticket")
	require.NoError(t, err)

	reviewURL, err := host.CreateReview(context.Background(), ReviewRequest{
		BugKey:  "PROJ-1",
		Summary: "Crash",
		Fix:     map[string]string{"//depot/b.c": "y", "//depot/a.c": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/reviews/1234", reviewURL)
}

func TestPerforceHost_CreateReviewFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	host, err := NewPerforceHost(server.URL, "alice", "ticket")
	require.NoError(t, err)

	_, err = host.CreateReview(context.Background(), ReviewRequest{BugKey: "K", Summary: "s"})
	assert.ErrorContains(t, err, "403")
}

func TestPerforceHost_SearchCode(t *testing.T) {
	host, err := NewPerforceHost("http://swarm", "alice", "ticket")
	require.NoError(t, err)
	paths, err := host.SearchCode(context.Background(), []string{"anything"})
	require.NoError(t, err)
	assert.Empty(t, paths)
}
