package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/legaleagle/internal/models"
)

func TestWriteQueryResult_text(t *testing.T) {
	res := &models.QueryResult{
		Answer:    "Either party may terminate with 30 days notice [Page 1].",
		Citations: []int{1, 2, 3, 5},
		Sources: []models.Source{
			{Page: 1, TextPreview: "Termination:\neither party may terminate...", SimilarityScore: 0.81234},
			{Page: 5, TextPreview: "Notices shall be in writing...", SimilarityScore: 0.4},
		},
	}
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"30 days notice [Page 1].",
		"Citations: 1-3, 5",
		"1. Page 1 (similarity 0.812)",
		"Termination: either party may terminate...",
		"2. Page 5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteQueryResult_noMatches(t *testing.T) {
	res := &models.QueryResult{Answer: "I couldn't find any relevant information.", Citations: []int{}, Sources: []models.Source{}}
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Citations") || strings.Contains(buf.String(), "Sources") {
		t.Errorf("empty result should print only the answer:\n%s", buf.String())
	}
}

func TestWriteQueryResult_JSON(t *testing.T) {
	res := &models.QueryResult{Answer: "a", Citations: []int{2}, Sources: []models.Source{{Page: 2, TextPreview: "x...", SimilarityScore: 0.5}}}
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	for _, key := range []string{"answer", "citations", "sources"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
}

func TestWriteIngestResult(t *testing.T) {
	res := &models.IngestResult{
		ChunkCount: 12,
		Files: []models.FileResult{
			{Path: "/c/msa.pdf", Pages: 4, Chunks: 12},
			{Path: "/c/nda.pdf", Skipped: true},
			{Path: "/c/scan.pdf", Error: "ingest /c/scan.pdf: extract: no text found"},
		},
	}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"OK    /c/msa.pdf (4 pages, 12 chunks)",
		"SKIP  /c/nda.pdf",
		"FAIL  /c/scan.pdf",
		"Ingested 12 chunks from 1 files (1 skipped, 1 failed)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteContracts(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteContracts(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No contracts") {
		t.Errorf("empty listing: %q", buf.String())
	}
	buf.Reset()
	if err := WriteContracts(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON listing: %q", buf.String())
	}

	buf.Reset()
	contracts := []*models.Contract{{Title: "lease.pdf", Path: "/c/lease.pdf", Pages: 9, Chunks: 20, Backend: "local", IngestedAt: time.Now()}}
	if err := WriteContracts(&buf, contracts, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "lease.pdf") || !strings.Contains(buf.String(), "TITLE") {
		t.Errorf("listing:\n%s", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFormatPages(t *testing.T) {
	tests := []struct {
		pages []int
		want  string
	}{
		{nil, ""},
		{[]int{4}, "4"},
		{[]int{1, 2, 3, 7}, "1-3, 7"},
		{[]int{1, 3, 4}, "1, 3-4"},
	}
	for _, tt := range tests {
		if got := FormatPages(tt.pages); got != tt.want {
			t.Errorf("FormatPages(%v) = %q, want %q", tt.pages, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
