package pipeline

import (
	"sort"

	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/pkg/utils"
)

// PreviewLength is the number of characters of chunk text kept in a source preview.
const PreviewLength = 200

// Citations returns the distinct pages of results in ascending order. It does not look
// at the generated answer.
func Citations(results []models.SearchResult) []int {
	seen := make(map[int]struct{}, len(results))
	pages := make([]int, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Metadata.Page]; ok {
			continue
		}
		seen[r.Metadata.Page] = struct{}{}
		pages = append(pages, r.Metadata.Page)
	}
	sort.Ints(pages)
	return pages
}

// Sources returns one entry per result, in ranked order.
func Sources(results []models.SearchResult) []models.Source {
	out := make([]models.Source, len(results))
	for i, r := range results {
		out[i] = models.Source{
			Page:            r.Metadata.Page,
			TextPreview:     Preview(r.Text),
			SimilarityScore: r.Score,
		}
	}
	return out
}

// Preview is the first PreviewLength characters of text followed by "...".
// The ellipsis is always present, even when nothing was cut.
func Preview(text string) string {
	return utils.Prefix(text, PreviewLength) + "..."
}
