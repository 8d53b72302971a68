// Package model contains the domain entities shared across packages.
package model

import (
	"time"
)

// NotificationStatus describes the intake lifecycle. A notification moves from
// pending to exactly one terminal status and is never reprocessed.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationProcessed NotificationStatus = "processed"
	NotificationBad       NotificationStatus = "bad_notification"
	NotificationErrored   NotificationStatus = "errored"
)

// LocationKind is the storage tier a book currently belongs to.
type LocationKind string

const (
	KindQuarantine LocationKind = "quarantine"
	KindStaging    LocationKind = "staging"
	KindProd       LocationKind = "prod"
	KindToDelete   LocationKind = "to_delete"
	KindDeleted    LocationKind = "deleted"
)

// LocationStatus distinguishes where a file is from where it should be.
type LocationStatus string

const (
	// LocationCurrent means the file is believed to exist at this pointer.
	LocationCurrent LocationStatus = "current"
	// LocationTarget means the file is desired here but not yet confirmed.
	LocationTarget LocationStatus = "target"
)

// Maturity routes a title's books either straight to its collections (robust)
// or through the shared staging area first.
type Maturity string

const (
	MaturityDev    Maturity = "dev"
	MaturityRobust Maturity = "robust"
)

// Notification is one inbound production event. ID doubles as the id of the
// Book it may turn into.
type Notification struct {
	ID         string             `json:"id"`
	ReceivedAt time.Time          `json:"receivedAt"`
	RawContent map[string]any     `json:"rawContent"`
	Status     NotificationStatus `json:"status"`
	AuditLog   AuditLog           `json:"auditLog"`
	// BookID is set once the notification has been transformed into a book.
	BookID *string `json:"bookId,omitempty"`
}

// Book is the record of one archive file instance.
type Book struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"createdAt"`
	ArticleCount int64             `json:"articleCount"`
	MediaCount   int64             `json:"mediaCount"`
	SizeBytes    int64             `json:"sizeBytes"`
	Metadata     map[string]string `json:"metadata"`
	// CheckResult is the producer's QA blob, kept opaque for operators.
	CheckResult        any          `json:"checkResult,omitempty"`
	Name               string       `json:"name"`
	Date               string       `json:"date"`
	Flavour            string       `json:"flavour,omitempty"`
	NeedsProcessing    bool         `json:"needsProcessing"`
	HasError           bool         `json:"hasError"`
	NeedsFileOperation bool         `json:"needsFileOperation"`
	Kind               LocationKind `json:"locationKind"`
	DeletionDueAt      *time.Time   `json:"deletionDueAt,omitempty"`
	AuditLog           AuditLog     `json:"auditLog"`
	TitleID            *string      `json:"titleId,omitempty"`
}

// Period returns the YYYY-MM part of the book's date, or "" when the date is
// too short to carry one.
func (b *Book) Period() string {
	if len(b.Date) < 7 {
		return ""
	}
	return b.Date[:7]
}

// Title is the logical grouping a sequence of books belongs to.
type Title struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Maturity Maturity `json:"maturity"`
	AuditLog AuditLog `json:"auditLog"`
}

// Location is a single physical file pointer, composite-keyed by
// (BookID, WarehouseID, Path, Status).
type Location struct {
	BookID      string         `json:"bookId"`
	WarehouseID string         `json:"warehouseId"`
	Path        string         `json:"path"`
	Filename    string         `json:"filename"`
	Status      LocationStatus `json:"status"`
}

// SamePlace reports whether two locations point at the same physical file,
// ignoring status.
func (l Location) SamePlace(o Location) bool {
	return l.WarehouseID == o.WarehouseID && l.Path == o.Path && l.Filename == o.Filename
}

// Warehouse is a named physical storage root. Its local base directory is
// supplied out of band by the warehouse resolver, never stored here.
type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Collection groups title associations against one warehouse and defines
// where a robust title's files must live.
type Collection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WarehouseID string `json:"warehouseId"`
}

// CollectionTitle is one (title, subpath) association inside a collection.
type CollectionTitle struct {
	CollectionID string `json:"collectionId"`
	TitleID      string `json:"titleId"`
	Subpath      string `json:"subpath"`
}

// Destination is a resolved (warehouse, path) pair a book's file must end up
// in.
type Destination struct {
	WarehouseID string `json:"warehouseId"`
	Path        string `json:"path"`
}
