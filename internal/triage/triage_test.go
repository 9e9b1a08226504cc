package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/easeaico/bug-triage-agent/internal/tracker"
	"github.com/easeaico/bug-triage-agent/internal/vcs"
)

type fakeBugs struct {
	issues []tracker.Issue
	err    error
}

func (f *fakeBugs) OpenBugs(context.Context, string) ([]tracker.Issue, error) {
	return f.issues, f.err
}

type analyzeCall struct {
	title, description string
	files              []string
}

type fakeAnalyzer struct {
	calls []analyzeCall
	fail  map[string]bool // by title
}

func (f *fakeAnalyzer) Analyze(_ context.Context, title, description string, files []string) (map[string]string, error) {
	f.calls = append(f.calls, analyzeCall{title, description, files})
	if f.fail[title] {
		return nil, errors.New("model unavailable")
	}
	fix := make(map[string]string, len(files))
	for _, file := range files {
		fix[file] = "patch for " + title
	}
	return fix, nil
}

type fakeHost struct {
	paths     map[string][]string // keyword -> paths
	searchErr error
	reviews   []vcs.ReviewRequest
	reviewErr error
}

func (f *fakeHost) SearchCode(_ context.Context, keywords []string) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []string
	for _, k := range keywords {
		out = append(out, f.paths[k]...)
	}
	return out, nil
}

func (f *fakeHost) CreateReview(_ context.Context, req vcs.ReviewRequest) (string, error) {
	if f.reviewErr != nil {
		return "", f.reviewErr
	}
	f.reviews = append(f.reviews, req)
	return "https://review/" + req.BugKey, nil
}

type fakeIndex struct {
	files []string
	err   error
}

func (f *fakeIndex) Query(context.Context, string, int) ([]string, error) {
	return f.files, f.err
}

func bug(key, summary, description string) tracker.Issue {
	return tracker.Issue{
		Key: key,
		Fields: tracker.IssueFields{
			Summary:     summary,
			Description: description,
			IssueType:   tracker.IssueType{Name: "Bug"},
		},
	}
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name        string
		title, desc string
		want        []string
	}{
		{
			name:  "filters short words and punctuation",
			title: "Crash on save.",
			desc:  "The app crashes, when saving",
			want:  []string{"crash", "save", "crashes", "when", "saving"},
		},
		{
			name:  "dedup keeps first occurrence",
			title: "Login login LOGIN",
			desc:  "login.",
			want:  []string{"login"},
		},
		{
			name:  "counts characters not bytes",
			title: "été café",
			desc:  "Größe",
			want:  []string{"café", "größe"},
		},
		{
			name:  "punctuation only",
			title: "....",
			desc:  ",,,,",
			want:  nil,
		},
		{
			name: "empty",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Keywords(tt.title, tt.desc)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Keywords mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrchestrator_ProcessBug(t *testing.T) {
	host := &fakeHost{paths: map[string][]string{"save": {"save.py"}, "crash": {"save.py", "app.py"}}}
	analyzer := &fakeAnalyzer{}
	o := New(nil, analyzer, host, WithCodeIndex(&fakeIndex{files: []string{"app.py", "learned.py"}}))

	reviewURL, err := o.ProcessBug(context.Background(), bug("PROJ-1", "Crash on save", "details"))
	if err != nil {
		t.Fatalf("ProcessBug failed: %v", err)
	}
	if reviewURL != "https://review/PROJ-1" {
		t.Errorf("unexpected review URL %q", reviewURL)
	}

	wantFiles := []string{"save.py", "app.py", "learned.py"}
	if diff := cmp.Diff(wantFiles, analyzer.calls[0].files); diff != "" {
		t.Errorf("related files mismatch (-want +got):\n%s", diff)
	}

	want := vcs.ReviewRequest{
		BugKey:  "PROJ-1",
		Summary: "Crash on save",
		Fix: map[string]string{
			"save.py":    "patch for Crash on save",
			"app.py":     "patch for Crash on save",
			"learned.py": "patch for Crash on save",
		},
	}
	if diff := cmp.Diff([]vcs.ReviewRequest{want}, host.reviews); diff != "" {
		t.Errorf("review mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_ProcessBugErrors(t *testing.T) {
	t.Run("analysis", func(t *testing.T) {
		host := &fakeHost{}
		o := New(nil, &fakeAnalyzer{fail: map[string]bool{"s": true}}, host)
		if _, err := o.ProcessBug(context.Background(), bug("K-1", "s", "d")); err == nil {
			t.Fatal("expected an analysis error")
		}
		if len(host.reviews) != 0 {
			t.Error("no review should be created when analysis fails")
		}
	})

	t.Run("review", func(t *testing.T) {
		o := New(nil, &fakeAnalyzer{}, &fakeHost{reviewErr: errors.New("forbidden")})
		if _, err := o.ProcessBug(context.Background(), bug("K-1", "s", "d")); err == nil {
			t.Fatal("expected a review error")
		}
	})
}

func TestOrchestrator_RelatedFilesDegrades(t *testing.T) {
	o := New(nil, &fakeAnalyzer{}, &fakeHost{searchErr: errors.New("rate limited")},
		WithCodeIndex(&fakeIndex{err: errors.New("index closed")}))

	if files := o.RelatedFiles(context.Background(), "Crash on save", ""); len(files) != 0 {
		t.Errorf("expected no files, got %v", files)
	}
}

func TestOrchestrator_Triage(t *testing.T) {
	bugs := &fakeBugs{issues: []tracker.Issue{
		bug("P-1", "first", ""),
		bug("P-2", "broken", ""),
		bug("P-3", "third", ""),
	}}
	analyzer := &fakeAnalyzer{fail: map[string]bool{"broken": true}}
	host := &fakeHost{}
	o := New(bugs, analyzer, host)

	err := o.Triage(context.Background(), "proj")
	if err == nil {
		t.Fatal("expected the failing bug to be reported")
	}
	if len(analyzer.calls) != 3 {
		t.Errorf("expected all 3 bugs to be analyzed, got %d", len(analyzer.calls))
	}

	var keys []string
	for _, r := range host.reviews {
		keys = append(keys, r.BugKey)
	}
	if diff := cmp.Diff([]string{"P-1", "P-3"}, keys); diff != "" {
		t.Errorf("reviewed bugs mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_TriageListFailure(t *testing.T) {
	o := New(&fakeBugs{err: errors.New("jira down")}, &fakeAnalyzer{}, &fakeHost{})
	if err := o.Triage(context.Background(), "proj"); err == nil {
		t.Fatal("expected an error when bugs cannot be listed")
	}

	if err := New(nil, &fakeAnalyzer{}, &fakeHost{}).Triage(context.Background(), "proj"); err == nil {
		t.Fatal("expected an error without a bug source")
	}
}
