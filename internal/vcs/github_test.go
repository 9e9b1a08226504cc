package vcs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-github/v84/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub records the write calls made against a minimal GitHub API.
type fakeGitHub struct {
	mu            sync.Mutex
	branches      map[string]string
	files         map[string]string // path -> sha on the review branch
	createdRefs   []map[string]string
	refStatus     int
	puts          map[string]map[string]any
	pulls         []map[string]any
	searchResults map[string][]string
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		branches: map[string]string{"main": "base-sha"},
		files:    map[string]string{},
		puts:     map[string]map[string]any{},
	}
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /search/code", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		word, _, _ := strings.Cut(q, " ")
		paths, ok := f.searchResults[word]
		if !ok {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		items := make([]map[string]string, len(paths))
		for i, p := range paths {
			items[i] = map[string]string{"path": p}
		}
		writeJSON(w, http.StatusOK, map[string]any{"total_count": len(items), "items": items})
	})

	mux.HandleFunc("GET /repos/o/r/git/ref/heads/{branch}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		sha, ok := f.branches[r.PathValue("branch")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ref":    "refs/heads/" + r.PathValue("branch"),
			"object": map[string]string{"sha": sha, "type": "commit"},
		})
	})

	mux.HandleFunc("POST /repos/o/r/git/refs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		if f.refStatus != 0 {
			f.mu.Unlock()
			writeJSON(w, f.refStatus, map[string]string{"message": "Reference already exists"})
			return
		}
		f.createdRefs = append(f.createdRefs, body)
		f.branches[strings.TrimPrefix(body["ref"], "refs/heads/")] = body["sha"]
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"ref": body["ref"], "object": map[string]string{"sha": body["sha"]}})
	})

	mux.HandleFunc("GET /repos/o/r/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		sha, ok := f.files[r.PathValue("path")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"type": "file", "path": r.PathValue("path"), "sha": sha})
	})

	mux.HandleFunc("PUT /repos/o/r/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.puts[r.PathValue("path")] = body
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"content": map[string]string{"path": r.PathValue("path")}})
	})

	mux.HandleFunc("POST /repos/o/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.pulls = append(f.pulls, body)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"number": 7, "html_url": "https://github.com/o/r/pull/7"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestHost(t *testing.T, fake *fakeGitHub) *GitHubHost {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	host, err := newGitHubHost(client, "o/r", "")
	require.NoError(t, err)
	return host
}

func TestBranchName(t *testing.T) {
	assert.Equal(t, "bugfix-proj-1", BranchName("PROJ-1"))
	assert.Equal(t, "bugfix-my-bug-2", BranchName("My Bug 2"))
}

func TestNewGitHubHost_Validation(t *testing.T) {
	ctx := context.Background()
	_, err := NewGitHubHost(ctx, "", "tok", "")
	assert.Error(t, err)
	_, err = NewGitHubHost(ctx, "o/r", "", "")
	assert.Error(t, err)
	_, err = NewGitHubHost(ctx, "no-slash", "tok", "")
	assert.Error(t, err)
}

func TestGitHubHost_SearchCode(t *testing.T) {
	fake := newFakeGitHub()
	fake.searchResults = map[string][]string{
		"first":  {"a", "b"},
		"second": {"a", "c"},
		"many":   {"m1", "m2", "m3", "m4", "m5", "m6", "m7"},
	}
	host := newTestHost(t, fake)

	got, err := host.SearchCode(context.Background(), []string{"first", "broken", "second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got, err = host.SearchCode(context.Background(), []string{"many"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, got)
}

func TestGitHubHost_CreateReview(t *testing.T) {
	fake := newFakeGitHub()
	fake.files["src/existing.py"] = "123"
	host := newTestHost(t, fake)

	reviewURL, err := host.CreateReview(context.Background(), ReviewRequest{
		BugKey:  "PROJ-1",
		Summary: "Crash on save",
		Fix: map[string]string{
			"src/existing.py": "patched",
			"src/new.py":      "hello",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/o/r/pull/7", reviewURL)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Len(t, fake.createdRefs, 1)
	assert.Equal(t, map[string]string{"ref": "refs/heads/bugfix-proj-1", "sha": "base-sha"}, fake.createdRefs[0])

	created := fake.puts["src/new.py"]
	require.NotNil(t, created)
	content, err := base64.StdEncoding.DecodeString(fmt.Sprint(created["content"]))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Equal(t, "bugfix-proj-1", created["branch"])
	assert.Equal(t, "Automated fix", created["message"])
	assert.NotContains(t, created, "sha")

	updated := fake.puts["src/existing.py"]
	require.NotNil(t, updated)
	assert.Equal(t, "123", updated["sha"])

	require.Len(t, fake.pulls, 1)
	assert.Equal(t, "Fix: Crash on save", fake.pulls[0]["title"])
	assert.Equal(t, "bugfix-proj-1", fake.pulls[0]["head"])
	assert.Equal(t, "main", fake.pulls[0]["base"])
	assert.Equal(t, "Automated fix", fake.pulls[0]["body"])
}

func TestGitHubHost_CreateReviewExistingBranch(t *testing.T) {
	fake := newFakeGitHub()
	fake.branches["bugfix-proj-2"] = "branch-sha"
	host := newTestHost(t, fake)

	_, err := host.CreateReview(context.Background(), ReviewRequest{BugKey: "PROJ-2", Summary: "s"})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.createdRefs)
	assert.Empty(t, fake.puts, "an empty fix commits nothing")
	assert.Len(t, fake.pulls, 1)
}

func TestGitHubHost_CreateBranchFailures(t *testing.T) {
	t.Run("rejected by server", func(t *testing.T) {
		fake := newFakeGitHub()
		fake.refStatus = http.StatusUnprocessableEntity
		host := newTestHost(t, fake)

		_, err := host.CreateReview(context.Background(), ReviewRequest{BugKey: "PROJ-3", Summary: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create branch bugfix-proj-3")

		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Empty(t, fake.pulls)
	})

	t.Run("base branch without head", func(t *testing.T) {
		fake := newFakeGitHub()
		fake.branches["main"] = ""
		host := newTestHost(t, fake)

		_, err := host.CreateReview(context.Background(), ReviewRequest{BugKey: "PROJ-4", Summary: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sha must be provided")

		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Empty(t, fake.createdRefs)
		assert.Empty(t, fake.pulls)
	})
}
