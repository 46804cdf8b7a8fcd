package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"bookshop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises one Store implementation. Subtests share the store
// and run in order, so each one uses its own emails and ids.
func runStoreSuite(t *testing.T, s Store, seedReview func(context.Context, domain.Review) error) {
	ctx := context.Background()

	t.Run("empty store reports zero revenue and no stats", func(t *testing.T) {
		revenue, err := s.TotalRevenue(ctx)
		require.NoError(t, err)
		assert.Zero(t, revenue)

		stats, err := s.OrderStats(ctx)
		require.NoError(t, err)
		assert.Empty(t, stats)
	})

	t.Run("users insert if absent", func(t *testing.T) {
		before, err := s.CountUsers(ctx)
		require.NoError(t, err)

		id, inserted, err := s.InsertUserIfAbsent(ctx, domain.User{Email: "ann@example.com", Name: "Ann"})
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotEmpty(t, id)

		again, inserted, err := s.InsertUserIfAbsent(ctx, domain.User{Email: "ann@example.com", Name: "Other"})
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, id, again)

		u, ok, err := s.GetUserByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Ann", u.Name)
		assert.Equal(t, domain.RoleRegular, u.Role)

		after, err := s.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+1, after)

		_, ok, err = s.GetUserByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("users role elevation and delete", func(t *testing.T) {
		id, _, err := s.InsertUserIfAbsent(ctx, domain.User{Email: "bob@example.com"})
		require.NoError(t, err)

		res, err := s.SetUserRole(ctx, id, domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, UpdateResult{MatchedCount: 1, ModifiedCount: 1}, res)

		res, err = s.SetUserRole(ctx, id, domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, UpdateResult{MatchedCount: 1, ModifiedCount: 0}, res)

		u, ok, err := s.GetUserByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, u.IsAdmin())

		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, users)

		deleted, err := s.DeleteUser(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		deleted, err = s.DeleteUser(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("books accept both id forms", func(t *testing.T) {
		id, err := s.InsertBook(ctx, domain.Book{Title: "Dune", Category: "Fiction", Price: 12.5})
		require.NoError(t, err)
		require.Len(t, id, 24)

		b, ok, err := s.GetBook(ctx, strings.ToUpper(id))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, id, b.ID)
		assert.Equal(t, "Dune", b.Title)

		plainID, err := s.InsertBook(ctx, domain.Book{ID: "legacy-7", Title: "Emma", Category: "Classic", Price: 4})
		require.NoError(t, err)
		assert.Equal(t, "legacy-7", plainID)
		_, ok, err = s.GetBook(ctx, "legacy-7")
		require.NoError(t, err)
		assert.True(t, ok)

		res, err := s.UpdateBook(ctx, id, domain.BookUpdate{Title: "Dune Messiah", Category: "Fiction", Price: 14})
		require.NoError(t, err)
		assert.Equal(t, UpdateResult{MatchedCount: 1, ModifiedCount: 1}, res)

		res, err = s.SetBookImage(ctx, id, "covers/dune.png")
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.MatchedCount)

		b, _, err = s.GetBook(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Dune Messiah", b.Title)
		assert.Equal(t, 14.0, b.Price)
		assert.Equal(t, "covers/dune.png", b.Image)

		res, err = s.UpdateBook(ctx, "missing-book", domain.BookUpdate{Title: "x"})
		require.NoError(t, err)
		assert.Equal(t, UpdateResult{}, res)

		count, err := s.CountBooks(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		for _, bid := range []string{id, plainID} {
			deleted, err := s.DeleteBook(ctx, bid)
			require.NoError(t, err)
			assert.EqualValues(t, 1, deleted)
		}
		_, ok, err = s.GetBook(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		books, err := s.ListBooks(ctx)
		require.NoError(t, err)
		assert.Empty(t, books)
	})

	t.Run("reviews list", func(t *testing.T) {
		require.NoError(t, seedReview(ctx, domain.Review{Name: "Cleo", Details: "Great pacing", Rating: 4.5}))
		reviews, err := s.ListReviews(ctx)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, "Cleo", reviews[0].Name)
		assert.NotEmpty(t, reviews[0].ID)
	})

	t.Run("cart bulk delete ignores unknown ids", func(t *testing.T) {
		a, err := s.InsertCartItem(ctx, domain.CartItem{Email: "cart@example.com", BookID: "b1", Price: 10})
		require.NoError(t, err)
		b, err := s.InsertCartItem(ctx, domain.CartItem{Email: "cart@example.com", BookID: "b2", Price: 5})
		require.NoError(t, err)
		_, err = s.InsertCartItem(ctx, domain.CartItem{Email: "other@example.com", BookID: "b1", Price: 10})
		require.NoError(t, err)

		items, err := s.ListCartItems(ctx, "cart@example.com")
		require.NoError(t, err)
		assert.Len(t, items, 2)

		deleted, err := s.DeleteCartItems(ctx, []string{a, "ffffffffffffffffffffffff", "not-an-id"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		deleted, err = s.DeleteCartItems(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, deleted)

		deleted, err = s.DeleteCartItem(ctx, b)
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		items, err = s.ListCartItems(ctx, "cart@example.com")
		require.NoError(t, err)
		assert.Empty(t, items)

		others, err := s.ListCartItems(ctx, "other@example.com")
		require.NoError(t, err)
		assert.Len(t, others, 1)
	})

	t.Run("payments history and revenue", func(t *testing.T) {
		paidAt := time.Date(2024, 3, 2, 15, 4, 5, 0, time.UTC)
		id, err := s.InsertPayment(ctx, domain.Payment{
			Email:         "pay@example.com",
			Price:         21.5,
			TransactionID: "pi_123",
			Date:          paidAt,
			Status:        "pending",
			BookItemIDs:   []string{"missing-1"},
			CartIDs:       []string{"c1", "c2"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		history, err := s.ListPaymentsByEmail(ctx, "pay@example.com")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, []string{"c1", "c2"}, history[0].CartIDs)
		assert.Equal(t, "pi_123", history[0].TransactionID)
		assert.True(t, paidAt.Equal(history[0].Date))

		none, err := s.ListPaymentsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Empty(t, none)

		count, err := s.CountPayments(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		revenue, err := s.TotalRevenue(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 21.5, revenue, 1e-9)

		stats, err := s.OrderStats(ctx)
		require.NoError(t, err)
		assert.Empty(t, stats, "ids without a catalog entry contribute nothing")
	})

	t.Run("order stats inner join on catalog", func(t *testing.T) {
		bookID, err := s.InsertBook(ctx, domain.Book{Title: "Foundation", Category: "Fiction", Price: 10})
		require.NoError(t, err)
		_, err = s.InsertPayment(ctx, domain.Payment{
			Email:       "stats@example.com",
			Price:       99,
			Date:        time.Now().UTC(),
			BookItemIDs: []string{bookID, "absent-book"},
		})
		require.NoError(t, err)

		stats, err := s.OrderStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.CategoryStat{{Category: "Fiction", Quantity: 1, Revenue: 10}}, stats)
	})
}
