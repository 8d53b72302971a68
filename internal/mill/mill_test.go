package mill

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"bookyard/internal/model"
	"bookyard/internal/storage"
)

func newTestMill(store storage.Store) *Mill {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, Options{
		Staging:         model.Destination{WarehouseID: "wh-staging", Path: "staging"},
		RetentionMinAge: 30 * 24 * time.Hour,
		DeletionDelay:   7 * 24 * time.Hour,
	}, logger)
}

func validPayload(name, date string) map[string]any {
	return map[string]any{
		"article_count": float64(1200),
		"media_count":   float64(300),
		"size":          float64(1 << 20),
		"check_result":  map[string]any{"status": "ok"},
		"warehouse":     "wh-quarantine",
		"folder":        "incoming",
		"filename":      "upload.zim",
		"metadata": map[string]any{
			"creator":     "someone",
			"date":        date,
			"description": "test archive",
			"language":    "eng",
			"name":        name,
			"publisher":   "someone else",
			"title":       "A Title",
		},
	}
}

func auditContains(t *testing.T, log model.AuditLog, want string) {
	t.Helper()
	for _, line := range log {
		if strings.Contains(line, want) {
			return
		}
	}
	t.Fatalf("audit log %v does not contain %q", log, want)
}

func TestProcessNotificationValid(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.AddTitle(&model.Title{ID: "t1", Name: "wiki", Maturity: model.MaturityDev})
	m := newTestMill(store)

	n := &model.Notification{
		ID:         "n1",
		ReceivedAt: time.Now().UTC(),
		RawContent: validPayload("wiki", "2024-02-15"),
		Status:     model.NotificationPending,
	}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	m.ProcessNotification(ctx, n)

	if n.Status != model.NotificationProcessed {
		t.Fatalf("notification status = %s, want processed", n.Status)
	}
	if n.BookID == nil || *n.BookID != "n1" {
		t.Fatalf("notification book id = %v, want n1", n.BookID)
	}

	b, err := store.GetBook(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Kind != model.KindStaging {
		t.Errorf("book kind = %s, want staging", b.Kind)
	}
	if b.NeedsProcessing {
		t.Error("book still flagged for processing")
	}
	if !b.NeedsFileOperation {
		t.Error("book not flagged for file operation")
	}
	if b.ArticleCount != 1200 || b.MediaCount != 300 {
		t.Errorf("counts = %d/%d, want 1200/300", b.ArticleCount, b.MediaCount)
	}
	auditContains(t, b.AuditLog, "QA passed")

	locs, err := store.LocationsByBook(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	var currents, targets []model.Location
	for _, l := range locs {
		if l.Status == model.LocationCurrent {
			currents = append(currents, l)
		} else {
			targets = append(targets, l)
		}
	}
	if len(currents) != 1 || len(targets) != 1 {
		t.Fatalf("locations = %d current / %d target, want 1/1", len(currents), len(targets))
	}
	if currents[0].WarehouseID != "wh-quarantine" || currents[0].Filename != "upload.zim" {
		t.Errorf("unexpected current location %+v", currents[0])
	}
	if targets[0].WarehouseID != "wh-staging" || targets[0].Path != "staging" {
		t.Errorf("unexpected target location %+v", targets[0])
	}
	if targets[0].Filename != "wiki_2024-02.zim" {
		t.Errorf("target filename = %s, want wiki_2024-02.zim", targets[0].Filename)
	}
}

func TestProcessNotificationMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMill(store)

	payload := validPayload("wiki", "2024-02-15")
	delete(payload, "metadata")
	delete(payload, "size")
	n := &model.Notification{ID: "n2", RawContent: payload, Status: model.NotificationPending}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	m.ProcessNotification(ctx, n)

	if n.Status != model.NotificationBad {
		t.Fatalf("notification status = %s, want bad_notification", n.Status)
	}
	auditContains(t, n.AuditLog, "missing keys: metadata, size")
	if _, err := store.GetBook(ctx, "n2"); err != storage.ErrNotFound {
		t.Fatalf("book created for rejected notification, err = %v", err)
	}
}

func TestProcessNotificationInvalidFields(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMill(store)

	payload := validPayload("wiki", "2024-02-15")
	payload["warehouse"] = ""
	payload["article_count"] = "many"
	n := &model.Notification{ID: "n3", RawContent: payload, Status: model.NotificationPending}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	m.ProcessNotification(ctx, n)

	if n.Status != model.NotificationBad {
		t.Fatalf("notification status = %s, want bad_notification", n.Status)
	}
	auditContains(t, n.AuditLog, "invalid fields: article_count, warehouse")
}

func TestQAFailureMarksBookError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMill(store)

	payload := validPayload("wiki", "2024-02-15")
	meta := payload["metadata"].(map[string]any)
	delete(meta, "publisher")
	meta["language"] = "  "
	n := &model.Notification{ID: "n4", RawContent: payload, Status: model.NotificationPending}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	m.ProcessNotification(ctx, n)

	// The payload itself is well-formed, so the notification succeeds; the
	// content problem lands on the book.
	if n.Status != model.NotificationProcessed {
		t.Fatalf("notification status = %s, want processed", n.Status)
	}
	b, err := store.GetBook(ctx, "n4")
	if err != nil {
		t.Fatal(err)
	}
	if !b.HasError {
		t.Error("book not flagged with error")
	}
	if b.NeedsProcessing {
		t.Error("errored book still flagged for processing")
	}
	auditContains(t, b.AuditLog, "QA failed: missing metadata: language, publisher")
}

func TestBookAwaitingTitle(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMill(store)

	n := &model.Notification{ID: "n5", RawContent: validPayload("wiki", "2024-02-15"), Status: model.NotificationPending}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	m.ProcessNotification(ctx, n)

	b, err := store.GetBook(ctx, "n5")
	if err != nil {
		t.Fatal(err)
	}
	if b.HasError {
		t.Error("unmatched book must not carry the error flag")
	}
	if b.NeedsProcessing || b.NeedsFileOperation {
		t.Error("unmatched book must rest with all flags cleared")
	}
	if b.TitleID != nil {
		t.Errorf("title id = %v, want nil", b.TitleID)
	}
	auditContains(t, b.AuditLog, `no title named "wiki"`)
}

func TestPlanIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.AddTitle(&model.Title{ID: "t1", Name: "wiki", Maturity: model.MaturityDev})
	m := newTestMill(store)

	b := &model.Book{
		ID:   "b1",
		Name: "wiki",
		Date: "2024-02-15",
		Metadata: map[string]string{
			"creator": "c", "date": "2024-02-15", "description": "d",
			"language": "eng", "name": "wiki", "publisher": "p", "title": "T",
		},
		NeedsProcessing: true,
		Kind:            model.KindStaging,
	}
	if err := store.CreateBook(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateLocation(ctx, model.Location{
		BookID: "b1", WarehouseID: "wh-staging", Path: "staging",
		Filename: "wiki_2024-02.zim", Status: model.LocationCurrent,
	}); err != nil {
		t.Fatal(err)
	}

	m.ProcessBook(ctx, b)

	if b.NeedsFileOperation {
		t.Error("already-placed book flagged for file operation")
	}
	if b.NeedsProcessing {
		t.Error("book still flagged for processing")
	}
	auditContains(t, b.AuditLog, "already placed")

	locs, err := store.LocationsByBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 {
		t.Fatalf("locations = %d, want the single current to survive untouched", len(locs))
	}
}

func TestPlanRobustTitleMultipleDestinations(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.AddTitle(&model.Title{ID: "t1", Name: "wiki", Maturity: model.MaturityRobust})
	store.AddCollection(model.Collection{ID: "c1", Name: "mirror-a", WarehouseID: "wh1"})
	store.AddCollection(model.Collection{ID: "c2", Name: "mirror-b", WarehouseID: "wh2"})
	store.AddCollectionTitle(model.CollectionTitle{CollectionID: "c1", TitleID: "t1", Subpath: "wiki"})
	store.AddCollectionTitle(model.CollectionTitle{CollectionID: "c2", TitleID: "t1", Subpath: "archives/wiki"})
	m := newTestMill(store)

	n := &model.Notification{ID: "n6", RawContent: validPayload("wiki", "2024-02-15"), Status: model.NotificationPending}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	m.ProcessNotification(ctx, n)

	b, err := store.GetBook(ctx, "n6")
	if err != nil {
		t.Fatal(err)
	}
	if b.Kind != model.KindProd {
		t.Fatalf("book kind = %s, want prod", b.Kind)
	}
	if !b.NeedsFileOperation {
		t.Error("book not flagged for file operation")
	}

	locs, err := store.LocationsByBook(ctx, "n6")
	if err != nil {
		t.Fatal(err)
	}
	targets := map[string]string{}
	for _, l := range locs {
		if l.Status == model.LocationTarget {
			targets[l.WarehouseID] = l.Path
			if l.Filename != "wiki_2024-02.zim" {
				t.Errorf("target filename = %s, want wiki_2024-02.zim", l.Filename)
			}
		}
	}
	if len(targets) != 2 || targets["wh1"] != "wiki" || targets["wh2"] != "archives/wiki" {
		t.Fatalf("targets = %v, want wh1/wiki and wh2/archives/wiki", targets)
	}
}

func TestPlanRenamesTitleToFollowBook(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.AddTitle(&model.Title{ID: "t1", Name: "wiki", Maturity: model.MaturityDev})
	m := newTestMill(store)

	b := &model.Book{
		ID:   "b1",
		Name: "wiki",
		Date: "2024-03-01",
		Metadata: map[string]string{
			"creator": "c", "date": "2024-03-01", "description": "d",
			"language": "eng", "name": "wiki", "publisher": "p", "title": "T",
		},
		NeedsProcessing: true,
		Kind:            model.KindQuarantine,
	}
	if err := store.CreateBook(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateLocation(ctx, model.Location{
		BookID: "b1", WarehouseID: "wh-quarantine", Path: "incoming",
		Filename: "upload.zim", Status: model.LocationCurrent,
	}); err != nil {
		t.Fatal(err)
	}

	// The book arrived under the title's current name; the name only diverges
	// when the producer renames. Simulate that by diverging the book.
	b.Name = "wiki-new"
	b.Metadata["name"] = "wiki-new"
	title, err := store.TitleByName(ctx, "wiki")
	if err != nil {
		t.Fatal(err)
	}
	m.plan(ctx, b, title)

	renamed, err := store.TitleByName(ctx, "wiki-new")
	if err != nil {
		t.Fatalf("title not renamed: %v", err)
	}
	auditContains(t, renamed.AuditLog, `renamed from "wiki" to "wiki-new"`)
}

func TestRetentionKeepsBestOfTwoNewestPeriods(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	title := &model.Title{ID: "t1", Name: "wiki", Maturity: model.MaturityRobust}
	store.AddTitle(title)
	m := newTestMill(store)

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	titleID := "t1"
	addProdBook := func(id, date, filename string, createdAt time.Time) {
		b := &model.Book{
			ID: id, CreatedAt: createdAt, Name: "wiki", Date: date,
			Kind: model.KindProd, TitleID: &titleID,
		}
		if err := store.CreateBook(ctx, b); err != nil {
			t.Fatal(err)
		}
		if err := store.CreateLocation(ctx, model.Location{
			BookID: id, WarehouseID: "wh1", Path: "wiki",
			Filename: filename, Status: model.LocationCurrent,
		}); err != nil {
			t.Fatal(err)
		}
	}

	// Oldest period: marked regardless of which book is best.
	addProdBook("b-jan", "2024-01-10", "wiki_2024-01.zim", old)
	// Second-newest period: two books with the same creation time, the suffix
	// counter breaks the tie.
	addProdBook("b-apr", "2024-04-05", "wiki_2024-04.zim", old)
	addProdBook("b-apr-a", "2024-04-20", "wiki_2024-04a.zim", old)
	// Newest period: creation time decides.
	addProdBook("b-jun-a", "2024-06-05", "wiki_2024-06a.zim", old)
	addProdBook("b-jun-b", "2024-06-20", "wiki_2024-06b.zim", old.Add(24*time.Hour))

	if err := m.applyRetention(ctx, title); err != nil {
		t.Fatal(err)
	}

	marked := map[string]bool{"b-jan": true, "b-apr": true, "b-jun-a": true}
	for id, want := range map[string]bool{
		"b-jan": true, "b-apr": true, "b-apr-a": false, "b-jun-a": true, "b-jun-b": false,
	} {
		b, err := store.GetBook(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got := b.Kind == model.KindToDelete; got != want {
			t.Errorf("book %s kind = %s, marked = %v, want %v", id, b.Kind, got, want)
		}
		if marked[id] {
			if b.DeletionDueAt == nil {
				t.Errorf("book %s has no deletion deadline", id)
			}
			if !b.NeedsFileOperation {
				t.Errorf("book %s not handed to the sweeper", id)
			}
		}
	}
}

func TestRetentionIgnoresYoungBooks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	title := &model.Title{ID: "t1", Name: "wiki", Maturity: model.MaturityRobust}
	store.AddTitle(title)
	m := newTestMill(store)

	titleID := "t1"
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	for _, b := range []*model.Book{
		{ID: "b-old", CreatedAt: old, Name: "wiki", Date: "2023-11-10", Kind: model.KindProd, TitleID: &titleID},
		// Young book in an even older period; the minimum age shields it.
		{ID: "b-young", CreatedAt: time.Now().UTC().Add(-2 * 24 * time.Hour), Name: "wiki", Date: "2023-05-10", Kind: model.KindProd, TitleID: &titleID},
	} {
		if err := store.CreateBook(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.applyRetention(ctx, title); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"b-old", "b-young"} {
		b, err := store.GetBook(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if b.Kind != model.KindProd {
			t.Errorf("book %s kind = %s, want prod untouched", id, b.Kind)
		}
	}
}

func TestWorkerRunOncePicksUpPendingWork(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.AddTitle(&model.Title{ID: "t1", Name: "wiki", Maturity: model.MaturityDev})
	m := newTestMill(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(m, store, time.Minute, time.Minute, logger)

	n := &model.Notification{ID: "n1", RawContent: validPayload("wiki", "2024-02-15"), Status: model.NotificationPending}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	w.RunOnce(ctx)

	got, err := store.GetBook(ctx, "n1")
	if err != nil {
		t.Fatalf("book not created by pass: %v", err)
	}
	if got.NeedsProcessing {
		t.Error("book left flagged for processing after pass")
	}
	if _, err := store.NextPendingNotification(ctx); err != storage.ErrNotFound {
		t.Errorf("pending notifications remain after pass, err = %v", err)
	}
}
