package store

import (
	"context"

	"bookshop/pkg/domain"
)

// UpdateResult mirrors the matched/modified counters of a single-document update.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// UserStore persists user records keyed by unique email.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	// InsertUserIfAbsent returns the new id and true, or the existing id and
	// false when the email is already registered.
	InsertUserIfAbsent(ctx context.Context, u domain.User) (string, bool, error)
	SetUserRole(ctx context.Context, id string, role domain.Role) (UpdateResult, error)
	DeleteUser(ctx context.Context, id string) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// BookStore persists catalog entries. Every by-id call accepts both id forms.
type BookStore interface {
	ListBooks(ctx context.Context) ([]domain.Book, error)
	GetBook(ctx context.Context, id string) (domain.Book, bool, error)
	InsertBook(ctx context.Context, b domain.Book) (string, error)
	UpdateBook(ctx context.Context, id string, upd domain.BookUpdate) (UpdateResult, error)
	SetBookImage(ctx context.Context, id, image string) (UpdateResult, error)
	DeleteBook(ctx context.Context, id string) (int64, error)
	CountBooks(ctx context.Context) (int64, error)
}

type ReviewStore interface {
	ListReviews(ctx context.Context) ([]domain.Review, error)
}

// CartStore persists cart items owned by an email.
type CartStore interface {
	ListCartItems(ctx context.Context, email string) ([]domain.CartItem, error)
	InsertCartItem(ctx context.Context, item domain.CartItem) (string, error)
	DeleteCartItem(ctx context.Context, id string) (int64, error)
	// DeleteCartItems removes every listed id that still exists and reports
	// how many were removed. Unknown ids are not an error.
	DeleteCartItems(ctx context.Context, ids []string) (int64, error)
}

// PaymentStore persists immutable payment records and aggregates over them.
type PaymentStore interface {
	InsertPayment(ctx context.Context, p domain.Payment) (string, error)
	ListPaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error)
	CountPayments(ctx context.Context) (int64, error)
	// TotalRevenue sums payment prices; zero when there are no payments.
	TotalRevenue(ctx context.Context) (float64, error)
	// OrderStats joins purchased book ids against the current catalog and
	// groups by category. Ids with no catalog entry are dropped.
	OrderStats(ctx context.Context) ([]domain.CategoryStat, error)
}

// Store is the full persistence surface used by the shop service.
type Store interface {
	UserStore
	BookStore
	ReviewStore
	CartStore
	PaymentStore
	Close(ctx context.Context) error
}
