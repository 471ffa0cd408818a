// Package cli renders LegalEagle results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an --output flag value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteQueryResult writes an answer with its citations and sources.
func WriteQueryResult(w io.Writer, res *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(res.Answer))
	if len(res.Citations) > 0 {
		fmt.Fprintf(w, "Citations: %s\n", FormatPages(res.Citations))
	}
	if len(res.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range res.Sources {
			fmt.Fprintf(w, "  %d. Page %d (similarity %.3f)\n", i+1, s.Page, s.SimilarityScore)
			fmt.Fprintf(w, "     %s\n", oneLine(s.TextPreview))
		}
	}
	return nil
}

// WriteIngestResult writes a per-file ingestion summary.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	skipped := 0
	for _, f := range res.Files {
		switch {
		case f.Error != "":
			fmt.Fprintf(w, "FAIL  %s: %s\n", f.Path, f.Error)
		case f.Skipped:
			skipped++
			fmt.Fprintf(w, "SKIP  %s (unchanged)\n", f.Path)
		default:
			fmt.Fprintf(w, "OK    %s (%d pages, %d chunks)\n", f.Path, f.Pages, f.Chunks)
		}
	}
	fmt.Fprintf(w, "\nIngested %d chunks from %d files (%d skipped, %d failed)\n",
		res.ChunkCount, len(res.Files)-skipped-res.Failed(), skipped, res.Failed())
	return nil
}

// WriteContracts writes the registry listing.
func WriteContracts(w io.Writer, contracts []*models.Contract, format OutputFormat) error {
	if format == OutputJSON {
		if contracts == nil {
			contracts = []*models.Contract{}
		}
		return WriteJSON(w, contracts)
	}
	if len(contracts) == 0 {
		fmt.Fprintln(w, "No contracts ingested yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tPAGES\tCHUNKS\tBACKEND\tINGESTED\tPATH")
	for _, c := range contracts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			utils.Truncate(c.Title, 40), c.Pages, c.Chunks, c.Backend,
			c.IngestedAt.Local().Format("2006-01-02 15:04"), c.Path)
	}
	return tw.Flush()
}

// FormatPages renders ascending page numbers, collapsing consecutive runs: [1 2 3 7] -> "1-3, 7".
func FormatPages(pages []int) string {
	var parts []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if j == i {
			parts = append(parts, fmt.Sprintf("%d", pages[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", pages[i], pages[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
