// Package storage defines the persistence surface shared by the mill and
// shuttle workers, plus an in-memory implementation used in tests.
package storage

import (
	"context"
	"errors"
	"time"

	"bookyard/internal/model"
)

// ErrNotFound is exported so callers can compare errors using errors.Is.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface the workers operate on. The pgx-backed
// implementation lives in internal/repository; MemoryStore doubles it for
// tests.
type Store interface {
	// Notifications.
	CreateNotification(ctx context.Context, n *model.Notification) error
	// NextPendingNotification returns the oldest pending notification, or
	// ErrNotFound when the queue is drained.
	NextPendingNotification(ctx context.Context) (*model.Notification, error)
	UpdateNotification(ctx context.Context, n *model.Notification) error

	// Books.
	CreateBook(ctx context.Context, b *model.Book) error
	UpdateBook(ctx context.Context, b *model.Book) error
	GetBook(ctx context.Context, id string) (*model.Book, error)
	// NextBookNeedingProcessing returns the oldest book with
	// needs_processing set and no error flag.
	NextBookNeedingProcessing(ctx context.Context) (*model.Book, error)
	// BooksNeedingFileOperation lists, oldest first, books awaiting
	// reconciliation (needs_file_operation, no error, not pending deletion).
	// A list rather than a single claim: a book skipped over an inaccessible
	// warehouse must not block the rest of the pass.
	BooksNeedingFileOperation(ctx context.Context) ([]*model.Book, error)
	// BooksDueForDeletion lists, oldest deadline first, to_delete books whose
	// grace period has elapsed.
	BooksDueForDeletion(ctx context.Context, now time.Time) ([]*model.Book, error)
	BooksByTitle(ctx context.Context, titleID string) ([]*model.Book, error)

	// Titles. Title and collection rows are written by the CRUD layer; the
	// workers only read them, except for the title name and audit log.
	TitleByName(ctx context.Context, name string) (*model.Title, error)
	UpdateTitle(ctx context.Context, t *model.Title) error
	// Destinations resolves every (warehouse, path) pair from the title's
	// collection associations.
	Destinations(ctx context.Context, titleID string) ([]model.Destination, error)

	// Locations.
	LocationsByBook(ctx context.Context, bookID string) ([]model.Location, error)
	CreateLocation(ctx context.Context, loc model.Location) error
	DeleteLocation(ctx context.Context, loc model.Location) error
	// PromoteLocation flips a target location to current.
	PromoteLocation(ctx context.Context, loc model.Location) error
	// FilenamesLike lists filenames of every location (any status, any book
	// except excludeBookID) starting with prefix. The allocator's collision
	// scan.
	FilenamesLike(ctx context.Context, prefix, excludeBookID string) ([]string, error)
}
