package pipeline

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/legaleagle/internal/models"
)

func TestCitations(t *testing.T) {
	tests := []struct {
		pages []int
		want  []int
	}{
		{[]int{3, 1, 3, 2}, []int{1, 2, 3}},
		{[]int{5}, []int{5}},
		{nil, []int{}},
	}
	for _, tt := range tests {
		var results []models.SearchResult
		for _, p := range tt.pages {
			results = append(results, result("x", p, 0.5))
		}
		if got := Citations(results); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Citations(%v) = %v, want %v", tt.pages, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := Preview(long)
	if got != strings.Repeat("a", 200)+"..." {
		t.Errorf("Preview of 250 chars has length %d", len(got))
	}
	if got := Preview("short clause"); got != "short clause..." {
		t.Errorf("Preview(short) = %q", got)
	}
	multi := strings.Repeat("é", 201)
	if got := Preview(multi); len([]rune(got)) != 203 {
		t.Errorf("Preview should count characters, got %d runes", len([]rune(got)))
	}
}

func TestBuildContext(t *testing.T) {
	results := []models.SearchResult{result("First clause.", 4, 0.9), result("Second clause.", 2, 0.8)}
	want := "[Excerpt 1 - Page 4]\nFirst clause.\n\n[Excerpt 2 - Page 2]\nSecond clause.\n"
	if got := BuildContext(results); got != want {
		t.Errorf("BuildContext =\n%q\nwant\n%q", got, want)
	}
	if got := BuildContext(nil); got != "" {
		t.Errorf("BuildContext(nil) = %q", got)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	got := BuildUserPrompt("CTX", "Who pays?")
	want := "Context excerpts from the contract:\nCTX\n\nQuestion: Who pays?\n\nPlease provide a concise answer based on the context above, with page citations."
	if got != want {
		t.Errorf("BuildUserPrompt =\n%q\nwant\n%q", got, want)
	}
}
