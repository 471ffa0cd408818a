package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractDocument handles RTF and ODT. Neither format carries reliable page
// boundaries, so the whole document is one page.
func extractDocument(content []byte) ([]string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("extract document: %w", err)
	}
	return []string{text}, nil
}
