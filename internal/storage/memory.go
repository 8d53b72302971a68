package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bookyard/internal/model"
)

// MemoryStore keeps every entity in maps guarded by a RWMutex. It backs the
// worker tests and small single-process deployments; production uses the pgx
// repository.
type MemoryStore struct {
	mu               sync.RWMutex
	notifications    map[string]*model.Notification
	books            map[string]*model.Book
	titles           map[string]*model.Title
	warehouses       map[string]*model.Warehouse
	collections      map[string]*model.Collection
	collectionTitles []model.CollectionTitle
	locations        []model.Location
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notifications: make(map[string]*model.Notification),
		books:         make(map[string]*model.Book),
		titles:        make(map[string]*model.Title),
		warehouses:    make(map[string]*model.Warehouse),
		collections:   make(map[string]*model.Collection),
	}
}

// CreateNotification inserts a notification row.
func (m *MemoryStore) CreateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now().UTC()
	}
	m.notifications[n.ID] = cloneNotification(n)
	return nil
}

// NextPendingNotification returns the oldest pending notification.
func (m *MemoryStore) NextPendingNotification(_ context.Context) (*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest *model.Notification
	for _, n := range m.notifications {
		if n.Status != model.NotificationPending {
			continue
		}
		if oldest == nil || earlier(n.ReceivedAt, n.ID, oldest.ReceivedAt, oldest.ID) {
			oldest = n
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}
	return cloneNotification(oldest), nil
}

// UpdateNotification replaces the stored notification.
func (m *MemoryStore) UpdateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[n.ID]; !ok {
		return ErrNotFound
	}
	m.notifications[n.ID] = cloneNotification(n)
	return nil
}

// CreateBook inserts a book row.
func (m *MemoryStore) CreateBook(_ context.Context, b *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	m.books[b.ID] = cloneBook(b)
	return nil
}

// UpdateBook replaces the stored book.
func (m *MemoryStore) UpdateBook(_ context.Context, b *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ID]; !ok {
		return ErrNotFound
	}
	m.books[b.ID] = cloneBook(b)
	return nil
}

// GetBook returns a copy of the book.
func (m *MemoryStore) GetBook(_ context.Context, id string) (*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBook(b), nil
}

// NextBookNeedingProcessing returns the oldest book awaiting pipeline work.
func (m *MemoryStore) NextBookNeedingProcessing(_ context.Context) (*model.Book, error) {
	return m.nextBook(func(b *model.Book) bool {
		return b.NeedsProcessing && !b.HasError
	})
}

// BooksNeedingFileOperation lists, oldest first, the books the reconciler
// should pick up.
func (m *MemoryStore) BooksNeedingFileOperation(_ context.Context) ([]*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Book
	for _, b := range m.books {
		if b.NeedsFileOperation && !b.HasError &&
			b.Kind != model.KindToDelete && b.Kind != model.KindDeleted {
			out = append(out, cloneBook(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return earlier(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

// BooksDueForDeletion lists, oldest deadline first, to_delete books whose
// grace period has elapsed.
func (m *MemoryStore) BooksDueForDeletion(_ context.Context, now time.Time) ([]*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Book
	for _, b := range m.books {
		if b.Kind != model.KindToDelete || b.HasError || !b.NeedsFileOperation {
			continue
		}
		if b.DeletionDueAt == nil || b.DeletionDueAt.After(now) {
			continue
		}
		out = append(out, cloneBook(b))
	}
	sort.Slice(out, func(i, j int) bool {
		return earlier(*out[i].DeletionDueAt, out[i].ID, *out[j].DeletionDueAt, out[j].ID)
	})
	return out, nil
}

// BooksByTitle lists the books attached to a title, oldest first.
func (m *MemoryStore) BooksByTitle(_ context.Context, titleID string) ([]*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Book
	for _, b := range m.books {
		if b.TitleID != nil && *b.TitleID == titleID {
			out = append(out, cloneBook(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return earlier(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

// AddTitle seeds a title. Titles are owned by the external CRUD layer, so
// creation is not part of the Store interface.
func (m *MemoryStore) AddTitle(t *model.Title) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles[t.ID] = cloneTitle(t)
}

// AddWarehouse seeds a warehouse.
func (m *MemoryStore) AddWarehouse(w model.Warehouse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses[w.ID] = &w
}

// AddCollection seeds a collection.
func (m *MemoryStore) AddCollection(c model.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.ID] = &c
}

// AddCollectionTitle seeds a (collection, title, subpath) association.
func (m *MemoryStore) AddCollectionTitle(ct model.CollectionTitle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectionTitles = append(m.collectionTitles, ct)
}

// TitleByName finds a title by exact name.
func (m *MemoryStore) TitleByName(_ context.Context, name string) (*model.Title, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.titles {
		if t.Name == name {
			return cloneTitle(t), nil
		}
	}
	return nil, ErrNotFound
}

// UpdateTitle replaces the stored title.
func (m *MemoryStore) UpdateTitle(_ context.Context, t *model.Title) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.titles[t.ID]; !ok {
		return ErrNotFound
	}
	m.titles[t.ID] = cloneTitle(t)
	return nil
}

// Destinations resolves the title's collection associations.
func (m *MemoryStore) Destinations(_ context.Context, titleID string) ([]model.Destination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Destination
	for _, ct := range m.collectionTitles {
		if ct.TitleID != titleID {
			continue
		}
		col, ok := m.collections[ct.CollectionID]
		if !ok {
			continue
		}
		out = append(out, model.Destination{WarehouseID: col.WarehouseID, Path: ct.Subpath})
	}
	return out, nil
}

// LocationsByBook lists the book's location rows.
func (m *MemoryStore) LocationsByBook(_ context.Context, bookID string) ([]model.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Location
	for _, l := range m.locations {
		if l.BookID == bookID {
			out = append(out, l)
		}
	}
	return out, nil
}

// CreateLocation inserts a location row.
func (m *MemoryStore) CreateLocation(_ context.Context, loc model.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, loc)
	return nil
}

// DeleteLocation removes the row matching the composite key.
func (m *MemoryStore) DeleteLocation(_ context.Context, loc model.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.locations {
		if l.BookID == loc.BookID && l.WarehouseID == loc.WarehouseID &&
			l.Path == loc.Path && l.Status == loc.Status {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// PromoteLocation flips a target row to current.
func (m *MemoryStore) PromoteLocation(_ context.Context, loc model.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.locations {
		if l.BookID == loc.BookID && l.WarehouseID == loc.WarehouseID &&
			l.Path == loc.Path && l.Status == model.LocationTarget {
			m.locations[i].Status = model.LocationCurrent
			return nil
		}
	}
	return ErrNotFound
}

// FilenamesLike lists filenames starting with prefix across all books except
// the excluded one.
func (m *MemoryStore) FilenamesLike(_ context.Context, prefix, excludeBookID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, l := range m.locations {
		if l.BookID == excludeBookID {
			continue
		}
		if strings.HasPrefix(l.Filename, prefix) {
			out = append(out, l.Filename)
		}
	}
	return out, nil
}

func (m *MemoryStore) nextBook(match func(*model.Book) bool) (*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest *model.Book
	for _, b := range m.books {
		if !match(b) {
			continue
		}
		if oldest == nil || earlier(b.CreatedAt, b.ID, oldest.CreatedAt, oldest.ID) {
			oldest = b
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}
	return cloneBook(oldest), nil
}

// earlier orders by timestamp with the id as a stable tie-break.
func earlier(t1 time.Time, id1 string, t2 time.Time, id2 string) bool {
	if !t1.Equal(t2) {
		return t1.Before(t2)
	}
	return id1 < id2
}

func cloneNotification(n *model.Notification) *model.Notification {
	c := *n
	c.RawContent = cloneAnyMap(n.RawContent)
	c.AuditLog = append(model.AuditLog(nil), n.AuditLog...)
	if n.BookID != nil {
		id := *n.BookID
		c.BookID = &id
	}
	return &c
}

func cloneBook(b *model.Book) *model.Book {
	c := *b
	c.Metadata = cloneStringMap(b.Metadata)
	c.AuditLog = append(model.AuditLog(nil), b.AuditLog...)
	if b.TitleID != nil {
		id := *b.TitleID
		c.TitleID = &id
	}
	if b.DeletionDueAt != nil {
		ts := *b.DeletionDueAt
		c.DeletionDueAt = &ts
	}
	return &c
}

func cloneTitle(t *model.Title) *model.Title {
	c := *t
	c.AuditLog = append(model.AuditLog(nil), t.AuditLog...)
	return &c
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
