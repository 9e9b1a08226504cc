package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func setupTree(t *testing.T) (tmpDir, workDir string) {
	t.Helper()
	tmpDir = t.TempDir()

	// A secret file outside the working directory
	if err := os.WriteFile(filepath.Join(tmpDir, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	workDir = filepath.Join(tmpDir, "work")
	if err := os.MkdirAll(filepath.Join(workDir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "normal.txt"), []byte("normal"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "pkg", "x.py"), []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A sibling whose name shares the root as a prefix
	if err := os.MkdirAll(filepath.Join(tmpDir, "work-other"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "work-other", "leak.txt"), []byte("leak"), 0o644); err != nil {
		t.Fatal(err)
	}
	return tmpDir, workDir
}

func TestDirReader_Read(t *testing.T) {
	tmpDir, workDir := setupTree(t)
	r, err := NewDirReader(workDir)
	if err != nil {
		t.Fatalf("NewDirReader failed: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "relative", path: "normal.txt", want: "normal"},
		{name: "nested", path: "pkg/x.py", want: "print(1)\n"},
		{name: "absolute inside", path: filepath.Join(workDir, "normal.txt"), want: "normal"},
		{name: "dot-dot escape", path: "../secret.txt", wantErr: ErrOutsideRoot},
		{name: "absolute outside", path: filepath.Join(tmpDir, "secret.txt"), wantErr: ErrOutsideRoot},
		{name: "prefix sibling", path: "../work-other/leak.txt", wantErr: ErrOutsideRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Read(ctx, tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirReader_ReadMissing(t *testing.T) {
	_, workDir := setupTree(t)
	r, err := NewDirReader(workDir)
	if err != nil {
		t.Fatalf("NewDirReader failed: %v", err)
	}
	_, err = r.Read(context.Background(), "missing.go")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestDirReader_List(t *testing.T) {
	_, workDir := setupTree(t)
	r, err := NewDirReader(workDir)
	if err != nil {
		t.Fatalf("NewDirReader failed: %v", err)
	}
	ctx := context.Background()

	got, err := r.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []DirEntry{
		{Name: "normal.txt", Size: 6},
		{Name: "pkg", IsDir: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.List(ctx, ".."); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot listing the parent, got %v", err)
	}
}
