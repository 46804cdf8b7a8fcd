package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"bookshop/pkg/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 52017745

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race on schema changes.
func NewGormStore(ctx context.Context, dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(ctx, db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &ReviewModel{}, &CartItemModel{}, &PaymentModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(ctx context.Context, db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(context.Background(), conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db.WithContext(ctx))
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, readErr("list users", err)
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, readErr("get user by email", err)
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) InsertUserIfAbsent(ctx context.Context, u domain.User) (string, bool, error) {
	model := userToModel(u)
	if model.ID == "" {
		model.ID = newHexID()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&model)
	if res.Error != nil {
		return "", false, writeErr("insert user", res.Error)
	}
	if res.RowsAffected == 1 {
		return model.ID, true, nil
	}
	existing, ok, err := s.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, writeErr("insert user", fmt.Errorf("user %s vanished after conflict", u.Email))
	}
	return existing.ID, false, nil
}

func (s *GormStore) SetUserRole(ctx context.Context, id string, role domain.Role) (UpdateResult, error) {
	return s.update(ctx, "set user role", &UserModel{}, id, map[string]any{"role": string(role)})
}

// update reports matched rows with a separate count so an update that sets
// identical values still counts as matched but not modified.
func (s *GormStore) update(ctx context.Context, op string, model any, id string, values map[string]any) (UpdateResult, error) {
	ids := ParseID(id).Strings()
	var matched int64
	if err := s.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Count(&matched).Error; err != nil {
		return UpdateResult{}, writeErr(op, err)
	}
	if matched == 0 {
		return UpdateResult{}, nil
	}
	changed := make([]clause.Expression, 0, len(values))
	for col, v := range values {
		changed = append(changed, clause.Neq{Column: clause.Column{Name: col}, Value: v})
	}
	res := s.db.WithContext(ctx).Model(model).
		Where("id IN ?", ids).
		Where(clause.Or(changed...)).
		Updates(values)
	if res.Error != nil {
		return UpdateResult{}, writeErr(op, res.Error)
	}
	return UpdateResult{MatchedCount: matched, ModifiedCount: res.RowsAffected}, nil
}

func (s *GormStore) DeleteUser(ctx context.Context, id string) (int64, error) {
	return s.deleteByIDs(ctx, "delete user", &UserModel{}, []string{id})
}

func (s *GormStore) deleteByIDs(ctx context.Context, op string, model any, ids []string) (int64, error) {
	forms := stringsOf(ids)
	if len(forms) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", forms).Delete(model)
	if res.Error != nil {
		return 0, writeErr(op, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) count(ctx context.Context, op string, model any) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
		return 0, readErr(op, err)
	}
	return n, nil
}

func (s *GormStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, "count users", &UserModel{})
}

func (s *GormStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, readErr("list books", err)
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

func (s *GormStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ParseID(id).Strings()).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, readErr("get book", err)
	}
	return bookFromModel(model), true, nil
}

func (s *GormStore) InsertBook(ctx context.Context, b domain.Book) (string, error) {
	model := bookToModel(b)
	if model.ID == "" {
		model.ID = newHexID()
	}
	model.CreatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", writeErr("insert book", err)
	}
	return model.ID, nil
}

func (s *GormStore) UpdateBook(ctx context.Context, id string, upd domain.BookUpdate) (UpdateResult, error) {
	return s.update(ctx, "update book", &BookModel{}, id, map[string]any{
		"title":    upd.Title,
		"category": upd.Category,
		"price":    upd.Price,
		"image":    upd.Image,
	})
}

func (s *GormStore) SetBookImage(ctx context.Context, id, image string) (UpdateResult, error) {
	return s.update(ctx, "set book image", &BookModel{}, id, map[string]any{"image": image})
}

func (s *GormStore) DeleteBook(ctx context.Context, id string) (int64, error) {
	return s.deleteByIDs(ctx, "delete book", &BookModel{}, []string{id})
}

func (s *GormStore) CountBooks(ctx context.Context) (int64, error) {
	return s.count(ctx, "count books", &BookModel{})
}

func (s *GormStore) ListReviews(ctx context.Context) ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, readErr("list reviews", err)
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Review{ID: m.ID, Name: m.Name, Details: m.Details, Rating: m.Rating})
	}
	return res, nil
}

// InsertReview seeds the review table; reviews have no public write route.
func (s *GormStore) InsertReview(ctx context.Context, r domain.Review) (string, error) {
	model := ReviewModel{ID: r.ID, Name: r.Name, Details: r.Details, Rating: r.Rating}
	if model.ID == "" {
		model.ID = newHexID()
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", writeErr("insert review", err)
	}
	return model.ID, nil
}

func (s *GormStore) ListCartItems(ctx context.Context, email string) ([]domain.CartItem, error) {
	var models []CartItemModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, readErr("list cart items", err)
	}
	res := make([]domain.CartItem, 0, len(models))
	for _, m := range models {
		res = append(res, cartItemFromModel(m))
	}
	return res, nil
}

func (s *GormStore) InsertCartItem(ctx context.Context, item domain.CartItem) (string, error) {
	model := cartItemToModel(item)
	if model.ID == "" {
		model.ID = newHexID()
	}
	model.CreatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", writeErr("insert cart item", err)
	}
	return model.ID, nil
}

func (s *GormStore) DeleteCartItem(ctx context.Context, id string) (int64, error) {
	return s.deleteByIDs(ctx, "delete cart item", &CartItemModel{}, []string{id})
}

func (s *GormStore) DeleteCartItems(ctx context.Context, ids []string) (int64, error) {
	return s.deleteByIDs(ctx, "delete cart items", &CartItemModel{}, ids)
}

func (s *GormStore) InsertPayment(ctx context.Context, p domain.Payment) (string, error) {
	model, err := paymentToModel(p)
	if err != nil {
		return "", writeErr("insert payment", err)
	}
	if model.ID == "" {
		model.ID = newHexID()
	}
	model.CreatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", writeErr("insert payment", err)
	}
	return model.ID, nil
}

func (s *GormStore) ListPaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error) {
	var models []PaymentModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, readErr("list payments", err)
	}
	res := make([]domain.Payment, 0, len(models))
	for _, m := range models {
		p, err := paymentFromModel(m)
		if err != nil {
			return nil, readErr("list payments", err)
		}
		res = append(res, p)
	}
	return res, nil
}

func (s *GormStore) CountPayments(ctx context.Context) (int64, error) {
	return s.count(ctx, "count payments", &PaymentModel{})
}

func (s *GormStore) TotalRevenue(ctx context.Context) (float64, error) {
	var total float64
	if err := s.db.WithContext(ctx).Model(&PaymentModel{}).Select("COALESCE(SUM(price), 0)").Scan(&total).Error; err != nil {
		return 0, readErr("total revenue", err)
	}
	return total, nil
}

// orderStatsSQL unnests purchased ids and joins them to the catalog on the
// raw id or, for ObjectID-shaped ids, the lowercase hex form.
const orderStatsSQL = `
SELECT b.category AS category, COUNT(*) AS quantity, COALESCE(SUM(b.price), 0) AS revenue
FROM payment_models p
CROSS JOIN LATERAL jsonb_array_elements_text(COALESCE(p.book_item_ids, '[]'::jsonb)) AS item(book_id)
JOIN book_models b
  ON b.id = item.book_id
  OR (item.book_id ~ '^[0-9a-fA-F]{24}$' AND b.id = lower(item.book_id))
GROUP BY b.category
ORDER BY b.category`

func (s *GormStore) OrderStats(ctx context.Context) ([]domain.CategoryStat, error) {
	var rows []domain.CategoryStat
	if err := s.db.WithContext(ctx).Raw(orderStatsSQL).Scan(&rows).Error; err != nil {
		return nil, readErr("order stats", err)
	}
	if rows == nil {
		rows = []domain.CategoryStat{}
	}
	return rows, nil
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func userToModel(u domain.User) UserModel {
	role := u.Role
	if role == "" {
		role = domain.RoleRegular
	}
	return UserModel{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(role),
		CreatedAt: time.Now().UTC(),
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{ID: m.ID, Email: m.Email, Name: m.Name, Role: domain.ParseRole(m.Role)}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{ID: b.ID, Title: b.Title, Category: b.Category, Price: b.Price, Image: b.Image}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{ID: m.ID, Title: m.Title, Category: m.Category, Price: m.Price, Image: m.Image}
}

func cartItemToModel(c domain.CartItem) CartItemModel {
	return CartItemModel{ID: c.ID, Email: c.Email, BookID: c.BookID, Title: c.Title, Price: c.Price, Image: c.Image}
}

func cartItemFromModel(m CartItemModel) domain.CartItem {
	return domain.CartItem{ID: m.ID, Email: m.Email, BookID: m.BookID, Title: m.Title, Price: m.Price, Image: m.Image}
}

func paymentToModel(p domain.Payment) (PaymentModel, error) {
	bookIDs, err := json.Marshal(nonNil(p.BookItemIDs))
	if err != nil {
		return PaymentModel{}, fmt.Errorf("encode book ids: %w", err)
	}
	cartIDs, err := json.Marshal(nonNil(p.CartIDs))
	if err != nil {
		return PaymentModel{}, fmt.Errorf("encode cart ids: %w", err)
	}
	return PaymentModel{
		ID:            p.ID,
		Email:         p.Email,
		Price:         p.Price,
		TransactionID: p.TransactionID,
		Date:          p.Date.UTC(),
		Status:        p.Status,
		BookItemIDs:   bookIDs,
		CartIDs:       cartIDs,
	}, nil
}

func paymentFromModel(m PaymentModel) (domain.Payment, error) {
	var bookIDs, cartIDs []string
	if len(m.BookItemIDs) > 0 {
		if err := json.Unmarshal(m.BookItemIDs, &bookIDs); err != nil {
			return domain.Payment{}, fmt.Errorf("payment %s: bookItemIds: %w", m.ID, err)
		}
	}
	if len(m.CartIDs) > 0 {
		if err := json.Unmarshal(m.CartIDs, &cartIDs); err != nil {
			return domain.Payment{}, fmt.Errorf("payment %s: cartIds: %w", m.ID, err)
		}
	}
	return domain.Payment{
		ID:            m.ID,
		Email:         m.Email,
		Price:         m.Price,
		TransactionID: m.TransactionID,
		Date:          m.Date,
		Status:        m.Status,
		BookItemIDs:   nonNil(bookIDs),
		CartIDs:       nonNil(cartIDs),
	}, nil
}

var _ Store = (*GormStore)(nil)
