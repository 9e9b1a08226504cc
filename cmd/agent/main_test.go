package main

import (
	"strings"
	"testing"
)

func TestBuildSystemPrompt(t *testing.T) {
	tests := []struct {
		name          string
		data          promptData
		wantContain   []string
		wantNoContain []string
	}{
		{
			name:        "with fix memory",
			data:        promptData{WorkDir: "/src/app", MemoryEnabled: true},
			wantContain: []string{"/src/app", "search_past_fixes", "remember_fix", "analyze_bug"},
		},
		{
			name:          "without fix memory",
			data:          promptData{WorkDir: "/src/app"},
			wantContain:   []string{"analyze_bug", "read_file_content"},
			wantNoContain: []string{"search_past_fixes", "remember_fix"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildSystemPrompt(tt.data)
			if err != nil {
				t.Fatalf("buildSystemPrompt failed: %v", err)
			}
			for _, s := range tt.wantContain {
				if !strings.Contains(got, s) {
					t.Errorf("expected prompt to contain %q", s)
				}
			}
			for _, s := range tt.wantNoContain {
				if strings.Contains(got, s) {
					t.Errorf("expected prompt not to contain %q", s)
				}
			}
		})
	}
}
