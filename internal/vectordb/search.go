package vectordb

import (
	"fmt"
	"strings"
)

// FormatHits renders retrieved chunks as human-readable text.
func FormatHits(hits []Hit) string {
	if len(hits) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n\n", len(hits))

	for i, h := range hits {
		fmt.Fprintf(&sb, "--- Result %d (similarity: %.4f) ---\n", i+1, h.Similarity)
		fmt.Fprintf(&sb, "Source: %s (chunk %d)\n\n", h.Source, h.Position+1)
		sb.WriteString(h.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
