package storage

import (
	"context"
	"testing"
	"time"

	"bookyard/internal/model"
)

func TestNextPendingNotificationOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now().UTC()
	for _, n := range []*model.Notification{
		{ID: "n2", ReceivedAt: base.Add(time.Minute), Status: model.NotificationPending},
		{ID: "n1", ReceivedAt: base, Status: model.NotificationPending},
		{ID: "n3", ReceivedAt: base.Add(-time.Minute), Status: model.NotificationProcessed},
	} {
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.NextPendingNotification(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "n1" {
		t.Errorf("claimed %s, want the oldest pending n1", got.ID)
	}
}

func TestUpdateMissingRowsReturnNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.UpdateBook(ctx, &model.Book{ID: "nope"}); err != ErrNotFound {
		t.Errorf("UpdateBook err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateNotification(ctx, &model.Notification{ID: "nope"}); err != ErrNotFound {
		t.Errorf("UpdateNotification err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateTitle(ctx, &model.Title{ID: "nope"}); err != ErrNotFound {
		t.Errorf("UpdateTitle err = %v, want ErrNotFound", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	b := &model.Book{ID: "b1", Metadata: map[string]string{"name": "wiki"}}
	if err := s.CreateBook(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	got.Metadata["name"] = "mutated"
	got.HasError = true

	again, err := s.GetBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Metadata["name"] != "wiki" || again.HasError {
		t.Error("mutating a returned book leaked into the store")
	}
}

func TestBooksNeedingFileOperationFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now().UTC()
	for _, b := range []*model.Book{
		{ID: "b-ok", CreatedAt: base, NeedsFileOperation: true, Kind: model.KindStaging},
		{ID: "b-err", CreatedAt: base, NeedsFileOperation: true, HasError: true, Kind: model.KindStaging},
		{ID: "b-del", CreatedAt: base, NeedsFileOperation: true, Kind: model.KindToDelete},
		{ID: "b-idle", CreatedAt: base, Kind: model.KindProd},
	} {
		if err := s.CreateBook(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	books, err := s.BooksNeedingFileOperation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].ID != "b-ok" {
		t.Fatalf("books = %v, want only b-ok", ids(books))
	}
}

func TestBooksDueForDeletion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	for _, b := range []*model.Book{
		{ID: "b-due", Kind: model.KindToDelete, NeedsFileOperation: true, DeletionDueAt: &past},
		{ID: "b-grace", Kind: model.KindToDelete, NeedsFileOperation: true, DeletionDueAt: &future},
		{ID: "b-err", Kind: model.KindToDelete, NeedsFileOperation: true, HasError: true, DeletionDueAt: &past},
	} {
		if err := s.CreateBook(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	books, err := s.BooksDueForDeletion(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].ID != "b-due" {
		t.Fatalf("books = %v, want only b-due", ids(books))
	}
}

func TestPromoteLocation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	loc := model.Location{BookID: "b1", WarehouseID: "wh1", Path: "a", Filename: "x.zim", Status: model.LocationTarget}
	if err := s.CreateLocation(ctx, loc); err != nil {
		t.Fatal(err)
	}
	if err := s.PromoteLocation(ctx, loc); err != nil {
		t.Fatal(err)
	}
	locs, err := s.LocationsByBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0].Status != model.LocationCurrent {
		t.Fatalf("locations = %+v, want one current", locs)
	}
	// A second promote finds no target row left.
	if err := s.PromoteLocation(ctx, loc); err != ErrNotFound {
		t.Errorf("second promote err = %v, want ErrNotFound", err)
	}
}

func TestFilenamesLikeExcludesBook(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, loc := range []model.Location{
		{BookID: "b1", WarehouseID: "wh1", Path: "a", Filename: "wiki_2024-02.zim", Status: model.LocationCurrent},
		{BookID: "b2", WarehouseID: "wh1", Path: "a", Filename: "wiki_2024-02a.zim", Status: model.LocationCurrent},
		{BookID: "b3", WarehouseID: "wh1", Path: "a", Filename: "other_2024-02.zim", Status: model.LocationCurrent},
	} {
		if err := s.CreateLocation(ctx, loc); err != nil {
			t.Fatal(err)
		}
	}

	names, err := s.FilenamesLike(ctx, "wiki_2024-02", "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "wiki_2024-02a.zim" {
		t.Fatalf("names = %v, want only b2's filename", names)
	}
}

func ids(books []*model.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}
