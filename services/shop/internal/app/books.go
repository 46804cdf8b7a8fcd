package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"bookshop/internal/util"
	"bookshop/pkg/domain"
	"bookshop/pkg/storage"
)

func (a *App) ListBooks(ctx context.Context) ([]domain.Book, error) {
	books, err := a.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// GetBook returns nil when no book matches id in either id form.
func (a *App) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &book, nil
}

func validPrice(price float64) bool {
	return !math.IsNaN(price) && !math.IsInf(price, 0) && price >= 0
}

func (a *App) CreateBook(ctx context.Context, b domain.Book) (InsertOutcome, error) {
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		return InsertOutcome{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if !validPrice(b.Price) {
		return InsertOutcome{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	b.ID = ""
	id, err := a.store.InsertBook(ctx, b)
	if err != nil {
		return InsertOutcome{}, fmt.Errorf("create book: %w", err)
	}
	return InsertOutcome{Acknowledged: true, InsertedID: id}, nil
}

func (a *App) UpdateBook(ctx context.Context, id string, upd domain.BookUpdate) (UpdateOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return UpdateOutcome{}, fmt.Errorf("%w: book id required", ErrInvalidInput)
	}
	upd.Title = strings.TrimSpace(upd.Title)
	if upd.Title == "" {
		return UpdateOutcome{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if !validPrice(upd.Price) {
		return UpdateOutcome{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	res, err := a.store.UpdateBook(ctx, id, upd)
	if err != nil {
		return UpdateOutcome{}, fmt.Errorf("update book: %w", err)
	}
	return UpdateOutcome{Acknowledged: true, UpdateResult: res}, nil
}

func (a *App) DeleteBook(ctx context.Context, id string) (DeleteOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeleteOutcome{}, fmt.Errorf("%w: book id required", ErrInvalidInput)
	}
	n, err := a.store.DeleteBook(ctx, id)
	if err != nil {
		return DeleteOutcome{}, fmt.Errorf("delete book: %w", err)
	}
	return DeleteOutcome{Acknowledged: true, DeletedCount: n}, nil
}

// UploadCover stores a cover image and points the book's image at it.
func (a *App) UploadCover(ctx context.Context, bookID string, r io.Reader, size int64, contentType string) (storage.Cover, error) {
	if a.covers == nil {
		return storage.Cover{}, ErrCoversDisabled
	}
	if size <= 0 || size > storage.MaxCoverBytes {
		return storage.Cover{}, fmt.Errorf("%w: cover must be between 1 byte and %d bytes", ErrInvalidInput, storage.MaxCoverBytes)
	}
	book, ok, err := a.store.GetBook(ctx, strings.TrimSpace(bookID))
	if err != nil {
		return storage.Cover{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return storage.Cover{}, fmt.Errorf("%w: book %s", ErrNotFound, bookID)
	}
	cover, err := a.covers.PutCover(ctx, book.ID, r, size, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return storage.Cover{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return storage.Cover{}, fmt.Errorf("store cover: %w", err)
	}
	if _, err := a.store.SetBookImage(ctx, book.ID, cover.URL); err != nil {
		if delErr := a.covers.DeleteCover(context.WithoutCancel(ctx), cover.Key); delErr != nil {
			util.LoggerFromContext(ctx).Warn("orphaned cover object", "key", cover.Key, "err", delErr)
		}
		return storage.Cover{}, fmt.Errorf("set book image: %w", err)
	}
	return cover, nil
}

func (a *App) ListReviews(ctx context.Context) ([]domain.Review, error) {
	reviews, err := a.store.ListReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
