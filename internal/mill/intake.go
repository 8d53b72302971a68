package mill

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"bookyard/internal/model"
)

// Payload keys the producer contract requires on every notification.
const (
	keyArticleCount = "article_count"
	keyMediaCount   = "media_count"
	keySize         = "size"
	keyMetadata     = "metadata"
	keyCheckResult  = "check_result"
	keyWarehouse    = "warehouse"
	keyFolder       = "folder"
	keyFilename     = "filename"
)

var requiredPayloadKeys = []string{
	keyArticleCount, keyMediaCount, keySize,
	keyMetadata, keyCheckResult,
	keyWarehouse, keyFolder, keyFilename,
}

// ProcessNotification turns one pending notification into a Book and walks it
// through QA, title matching and placement. The notification ends in exactly
// one terminal status: processed, bad_notification, or errored.
func (m *Mill) ProcessNotification(ctx context.Context, n *model.Notification) {
	log := m.logger.With(slog.String("notification_id", n.ID))

	book, bad := m.validate(n)
	if bad != "" {
		n.Status = model.NotificationBad
		n.AuditLog.Append("rejected: %s", bad)
		if err := m.store.UpdateNotification(ctx, n); err != nil {
			log.Error("update rejected notification", slog.String("error", err.Error()))
		}
		notificationsTotal.WithLabelValues(string(model.NotificationBad)).Inc()
		log.Warn("notification rejected", slog.String("reason", bad))
		return
	}

	fail := func(err error) {
		n.Status = model.NotificationErrored
		n.AuditLog.Append("errored: %v", err)
		if uerr := m.store.UpdateNotification(ctx, n); uerr != nil {
			log.Error("update errored notification", slog.String("error", uerr.Error()))
		}
		notificationsTotal.WithLabelValues(string(model.NotificationErrored)).Inc()
		log.Error("notification errored", slog.String("error", err.Error()))
	}

	if err := m.store.CreateBook(ctx, book); err != nil {
		fail(fmt.Errorf("create book: %w", err))
		return
	}
	loc := model.Location{
		BookID:      book.ID,
		WarehouseID: asString(n.RawContent[keyWarehouse]),
		Path:        asString(n.RawContent[keyFolder]),
		Filename:    asString(n.RawContent[keyFilename]),
		Status:      model.LocationCurrent,
	}
	if err := m.store.CreateLocation(ctx, loc); err != nil {
		fail(fmt.Errorf("create quarantine location: %w", err))
		return
	}

	n.Status = model.NotificationProcessed
	n.BookID = &book.ID
	n.AuditLog.Append("processed into book %s", book.ID)
	book.AuditLog.Append("created from notification %s, file %s/%s/%s",
		n.ID, loc.WarehouseID, loc.Path, loc.Filename)
	if err := m.store.UpdateNotification(ctx, n); err != nil {
		fail(fmt.Errorf("update notification: %w", err))
		return
	}
	if err := m.store.UpdateBook(ctx, book); err != nil {
		fail(fmt.Errorf("update book: %w", err))
		return
	}
	notificationsTotal.WithLabelValues(string(model.NotificationProcessed)).Inc()
	log.Info("notification processed", slog.String("book_id", book.ID))

	m.ProcessBook(ctx, book)
}

// validate checks the raw payload against the producer contract. It returns
// the book to create, or a non-empty rejection reason naming every key and
// field that failed.
func (m *Mill) validate(n *model.Notification) (*model.Book, string) {
	var missing, invalid []string
	for _, key := range requiredPayloadKeys {
		if _, ok := n.RawContent[key]; !ok {
			missing = append(missing, key)
		}
	}

	var articleCount, mediaCount, size int64
	if len(missing) == 0 {
		var ok bool
		if articleCount, ok = asInt64(n.RawContent[keyArticleCount]); !ok {
			invalid = append(invalid, keyArticleCount)
		}
		if mediaCount, ok = asInt64(n.RawContent[keyMediaCount]); !ok {
			invalid = append(invalid, keyMediaCount)
		}
		if size, ok = asInt64(n.RawContent[keySize]); !ok {
			invalid = append(invalid, keySize)
		}
		if _, ok = n.RawContent[keyMetadata].(map[string]any); !ok {
			invalid = append(invalid, keyMetadata)
		}
		for _, key := range []string{keyWarehouse, keyFolder, keyFilename} {
			if asString(n.RawContent[key]) == "" {
				invalid = append(invalid, key)
			}
		}
	}

	if len(missing) > 0 || len(invalid) > 0 {
		var parts []string
		if len(missing) > 0 {
			sort.Strings(missing)
			parts = append(parts, "missing keys: "+strings.Join(missing, ", "))
		}
		if len(invalid) > 0 {
			sort.Strings(invalid)
			parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
		}
		return nil, strings.Join(parts, "; ")
	}

	metadata := map[string]string{}
	for k, v := range n.RawContent[keyMetadata].(map[string]any) {
		metadata[k] = asString(v)
	}
	return &model.Book{
		ID:              n.ID,
		CreatedAt:       time.Now().UTC(),
		ArticleCount:    articleCount,
		MediaCount:      mediaCount,
		SizeBytes:       size,
		Metadata:        metadata,
		CheckResult:     n.RawContent[keyCheckResult],
		Name:            metadata["name"],
		Date:            metadata["date"],
		Flavour:         metadata["flavour"],
		NeedsProcessing: true,
		Kind:            model.KindQuarantine,
	}, ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt64 accepts the numeric shapes a decoded JSON payload can carry.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
