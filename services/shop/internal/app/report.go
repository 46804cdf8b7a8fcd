package app

import (
	"context"
	"fmt"

	"bookshop/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// AdminStats gathers store-wide counts and revenue. The four reads run
// concurrently and the first failure fails the call.
func (a *App) AdminStats(ctx context.Context) (domain.AdminStats, error) {
	var stats domain.AdminStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountUsers(gctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		stats.Users = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountBooks(gctx)
		if err != nil {
			return fmt.Errorf("count books: %w", err)
		}
		stats.BookItems = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountPayments(gctx)
		if err != nil {
			return fmt.Errorf("count payments: %w", err)
		}
		stats.Orders = n
		return nil
	})
	g.Go(func() error {
		revenue, err := a.store.TotalRevenue(gctx)
		if err != nil {
			return fmt.Errorf("total revenue: %w", err)
		}
		stats.Revenue = revenue
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.AdminStats{}, err
	}
	return stats, nil
}

// OrderStats groups purchased books by their current catalog category.
func (a *App) OrderStats(ctx context.Context) ([]domain.CategoryStat, error) {
	stats, err := a.store.OrderStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	if stats == nil {
		stats = []domain.CategoryStat{}
	}
	return stats, nil
}
