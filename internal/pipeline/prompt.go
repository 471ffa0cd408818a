package pipeline

import (
	"fmt"
	"strings"

	"github.com/hyperjump/legaleagle/internal/models"
)

// SystemPrompt is sent with every question.
const SystemPrompt = `You are a legal assistant that answers questions about a contract.

Rules:
1. Use ONLY the information in the provided context excerpts.
2. If the context does not contain the answer, say "I cannot find this information in the provided contract".
3. ALWAYS cite the page numbers you used, in the form [Page X] or [Pages X-Y].
4. Do not speculate or add information that is not in the context.
5. Be concise and precise.`

// BuildContext renders results in ranked order as numbered, page-labelled excerpts
// separated by blank lines.
func BuildContext(results []models.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Excerpt %d - Page %d]\n%s\n", i+1, r.Metadata.Page, r.Text)
	}
	return strings.Join(blocks, "\n")
}

// BuildUserPrompt wraps the context and the question into the user turn.
func BuildUserPrompt(context, question string) string {
	return "Context excerpts from the contract:\n" + context +
		"\n\nQuestion: " + question +
		"\n\nPlease provide a concise answer based on the context above, with page citations."
}
