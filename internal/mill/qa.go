package mill

import (
	"context"
	"sort"
	"strings"

	"bookyard/internal/model"
)

// Metadata keys every book must carry to pass QA.
var requiredMetadataKeys = []string{
	"creator", "date", "description", "language", "name", "publisher", "title",
}

// runQA validates the book's metadata completeness. A failure is terminal for
// the book until the content is corrected and resubmitted.
func (m *Mill) runQA(ctx context.Context, b *model.Book) bool {
	var missing []string
	for _, key := range requiredMetadataKeys {
		if strings.TrimSpace(b.Metadata[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		m.markBookError(ctx, b, "QA failed: missing metadata: "+strings.Join(missing, ", "))
		return false
	}
	b.AuditLog.Append("QA passed")
	return true
}
