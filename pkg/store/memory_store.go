package store

import (
	"context"
	"sync"

	"bookshop/pkg/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps every collection in process. It backs local runs and
// tests; records get ObjectID-shaped hex ids like the Mongo store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    []domain.User
	books    []domain.Book
	reviews  []domain.Review
	carts    []domain.CartItem
	payments []domain.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func newHexID() string {
	return primitive.NewObjectID().Hex()
}

// SeedReviews replaces the review collection, which has no write surface.
func (m *MemoryStore) SeedReviews(reviews ...domain.Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append([]domain.Review(nil), reviews...)
	for i := range m.reviews {
		if m.reviews[i].ID == "" {
			m.reviews[i].ID = newHexID()
		}
	}
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list users", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.User{}, m.users...), nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, false, readErr("get user by email", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) InsertUserIfAbsent(ctx context.Context, u domain.User) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, writeErr("insert user", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return existing.ID, false, nil
		}
	}
	if u.ID == "" {
		u.ID = newHexID()
	}
	m.users = append(m.users, u)
	return u.ID, true, nil
}

func (m *MemoryStore) SetUserRole(ctx context.Context, id string, role domain.Role) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, writeErr("set user role", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ParseID(id)
	for i := range m.users {
		if !key.Matches(m.users[i].ID) {
			continue
		}
		res := UpdateResult{MatchedCount: 1}
		if m.users[i].Role != role {
			m.users[i].Role = role
			res.ModifiedCount = 1
		}
		return res, nil
	}
	return UpdateResult{}, nil
}

func (m *MemoryStore) DeleteUser(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, writeErr("delete user", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ParseID(id)
	for i := range m.users {
		if key.Matches(m.users[i].ID) {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, readErr("count users", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *MemoryStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list books", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Book{}, m.books...), nil
}

func (m *MemoryStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Book{}, false, readErr("get book", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.bookIndex(id); i >= 0 {
		return m.books[i], true, nil
	}
	return domain.Book{}, false, nil
}

func (m *MemoryStore) bookIndex(id string) int {
	key := ParseID(id)
	for i := range m.books {
		if key.Matches(m.books[i].ID) {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) InsertBook(ctx context.Context, b domain.Book) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", writeErr("insert book", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = newHexID()
	}
	m.books = append(m.books, b)
	return b.ID, nil
}

func (m *MemoryStore) UpdateBook(ctx context.Context, id string, upd domain.BookUpdate) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, writeErr("update book", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.bookIndex(id)
	if i < 0 {
		return UpdateResult{}, nil
	}
	next := m.books[i]
	next.Title, next.Category, next.Price, next.Image = upd.Title, upd.Category, upd.Price, upd.Image
	res := UpdateResult{MatchedCount: 1}
	if next != m.books[i] {
		m.books[i] = next
		res.ModifiedCount = 1
	}
	return res, nil
}

func (m *MemoryStore) SetBookImage(ctx context.Context, id, image string) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, writeErr("set book image", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.bookIndex(id)
	if i < 0 {
		return UpdateResult{}, nil
	}
	res := UpdateResult{MatchedCount: 1}
	if m.books[i].Image != image {
		m.books[i].Image = image
		res.ModifiedCount = 1
	}
	return res, nil
}

func (m *MemoryStore) DeleteBook(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, writeErr("delete book", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.bookIndex(id)
	if i < 0 {
		return 0, nil
	}
	m.books = append(m.books[:i], m.books[i+1:]...)
	return 1, nil
}

func (m *MemoryStore) CountBooks(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, readErr("count books", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.books)), nil
}

func (m *MemoryStore) ListReviews(ctx context.Context) ([]domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list reviews", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Review{}, m.reviews...), nil
}

func (m *MemoryStore) ListCartItems(ctx context.Context, email string) ([]domain.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list cart items", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.CartItem{}
	for _, item := range m.carts {
		if item.Email == email {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertCartItem(ctx context.Context, item domain.CartItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", writeErr("insert cart item", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == "" {
		item.ID = newHexID()
	}
	m.carts = append(m.carts, item)
	return item.ID, nil
}

func (m *MemoryStore) DeleteCartItem(ctx context.Context, id string) (int64, error) {
	return m.DeleteCartItems(ctx, []string{id})
}

func (m *MemoryStore) DeleteCartItems(ctx context.Context, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, writeErr("delete cart items", err)
	}
	wanted := map[string]struct{}{}
	for _, s := range stringsOf(ids) {
		wanted[s] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.carts[:0]
	var deleted int64
	for _, item := range m.carts {
		if _, ok := wanted[item.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, item)
	}
	m.carts = kept
	return deleted, nil
}

func (m *MemoryStore) InsertPayment(ctx context.Context, p domain.Payment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", writeErr("insert payment", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = newHexID()
	}
	p.BookItemIDs = append([]string{}, p.BookItemIDs...)
	p.CartIDs = append([]string{}, p.CartIDs...)
	m.payments = append(m.payments, p)
	return p.ID, nil
}

func (m *MemoryStore) ListPaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list payments", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Payment{}
	for _, p := range m.payments {
		if p.Email == email {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) CountPayments(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, readErr("count payments", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.payments)), nil
}

func (m *MemoryStore) TotalRevenue(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, readErr("total revenue", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, p := range m.payments {
		total += p.Price
	}
	return total, nil
}

func (m *MemoryStore) OrderStats(ctx context.Context) ([]domain.CategoryStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("order stats", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return AggregateOrderStats(m.payments, m.books), nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
