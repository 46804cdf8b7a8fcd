package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookshop/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	booksCollection    = "book"
	reviewsCollection  = "reviews"
	cartsCollection    = "carts"
	paymentsCollection = "payments"
)

// Documents keep _id as any: catalog data mixes string and ObjectID keys.
type userDoc struct {
	ID    any    `bson:"_id,omitempty"`
	Email string `bson:"email"`
	Name  string `bson:"name,omitempty"`
	Role  string `bson:"role,omitempty"`
}

type bookDoc struct {
	ID       any     `bson:"_id,omitempty"`
	Title    string  `bson:"title"`
	Category string  `bson:"category"`
	Price    float64 `bson:"price"`
	Image    string  `bson:"image,omitempty"`
}

type reviewDoc struct {
	ID      any     `bson:"_id,omitempty"`
	Name    string  `bson:"name"`
	Details string  `bson:"details"`
	Rating  float64 `bson:"rating"`
}

type cartDoc struct {
	ID     any     `bson:"_id,omitempty"`
	Email  string  `bson:"email"`
	BookID string  `bson:"bookId"`
	Title  string  `bson:"title,omitempty"`
	Price  float64 `bson:"price"`
	Image  string  `bson:"image,omitempty"`
}

type paymentDoc struct {
	ID            any       `bson:"_id,omitempty"`
	Email         string    `bson:"email"`
	Price         float64   `bson:"price"`
	TransactionID string    `bson:"transactionId,omitempty"`
	Date          time.Time `bson:"date"`
	Status        string    `bson:"status,omitempty"`
	BookItemIDs   []string  `bson:"bookItemIds"`
	CartIDs       []string  `bson:"cardIds"`
}

// MongoStore implements Store on the shop's MongoDB database.
type MongoStore struct {
	db       *mongo.Database
	users    *mongo.Collection
	books    *mongo.Collection
	reviews  *mongo.Collection
	carts    *mongo.Collection
	payments *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:       db,
		users:    db.Collection(usersCollection),
		books:    db.Collection(booksCollection),
		reviews:  db.Collection(reviewsCollection),
		carts:    db.Collection(cartsCollection),
		payments: db.Collection(paymentsCollection),
	}
}

// CreateIndexes enforces unique user emails and speeds up per-owner lookups.
func (s *MongoStore) CreateIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	if _, err := s.carts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create carts index: %w", err)
	}
	if _, err := s.payments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create payments index: %w", err)
	}
	return nil
}

func idFilter(raw string) bson.M {
	return bson.M{"_id": bson.M{"$in": ParseID(raw).Candidates()}}
}

// newDocID keeps caller-supplied ids verbatim and mints an ObjectID otherwise.
func newDocID(raw string) any {
	if raw == "" {
		return primitive.NewObjectID()
	}
	return raw
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}

func findAll[D any, T any](ctx context.Context, coll *mongo.Collection, filter any, conv func(D) T) ([]T, error) {
	cur, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		out = append(out, conv(d))
	}
	return out, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := findAll(ctx, s.users, bson.M{}, userFromDoc)
	return users, readErr("list users", err)
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, readErr("get user by email", err)
	}
	return userFromDoc(doc), true, nil
}

func (s *MongoStore) InsertUserIfAbsent(ctx context.Context, u domain.User) (string, bool, error) {
	doc := userToDoc(u)
	// The equality filter supplies email on insert.
	onInsert := bson.M{"role": doc.Role}
	if doc.Name != "" {
		onInsert["name"] = doc.Name
	}
	if u.ID != "" {
		onInsert["_id"] = u.ID
	}
	res, err := s.users.UpdateOne(ctx,
		bson.M{"email": doc.Email},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", false, writeErr("insert user", err)
	}
	if res.UpsertedID != nil {
		return idString(res.UpsertedID), true, nil
	}
	existing, ok, err := s.GetUserByEmail(ctx, doc.Email)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, writeErr("insert user", fmt.Errorf("user %s vanished after upsert", doc.Email))
	}
	return existing.ID, false, nil
}

func (s *MongoStore) SetUserRole(ctx context.Context, id string, role domain.Role) (UpdateResult, error) {
	res, err := s.users.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{"role": string(role)}})
	if err != nil {
		return UpdateResult{}, writeErr("set user role", err)
	}
	return UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) (int64, error) {
	res, err := s.users.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return 0, writeErr("delete user", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.EstimatedDocumentCount(ctx)
	return n, readErr("count users", err)
}

func (s *MongoStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	books, err := findAll(ctx, s.books, bson.M{}, bookFromDoc)
	return books, readErr("list books", err)
}

func (s *MongoStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var doc bookDoc
	if err := s.books.FindOne(ctx, idFilter(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, readErr("get book", err)
	}
	return bookFromDoc(doc), true, nil
}

func (s *MongoStore) InsertBook(ctx context.Context, b domain.Book) (string, error) {
	doc := bookToDoc(b)
	doc.ID = newDocID(b.ID)
	res, err := s.books.InsertOne(ctx, doc)
	if err != nil {
		return "", writeErr("insert book", err)
	}
	return idString(res.InsertedID), nil
}

func (s *MongoStore) UpdateBook(ctx context.Context, id string, upd domain.BookUpdate) (UpdateResult, error) {
	set := bson.M{
		"title":    upd.Title,
		"category": upd.Category,
		"price":    upd.Price,
		"image":    upd.Image,
	}
	return s.updateBook(ctx, "update book", id, set)
}

func (s *MongoStore) SetBookImage(ctx context.Context, id, image string) (UpdateResult, error) {
	return s.updateBook(ctx, "set book image", id, bson.M{"image": image})
}

func (s *MongoStore) updateBook(ctx context.Context, op, id string, set bson.M) (UpdateResult, error) {
	res, err := s.books.UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return UpdateResult{}, writeErr(op, err)
	}
	return UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

func (s *MongoStore) DeleteBook(ctx context.Context, id string) (int64, error) {
	res, err := s.books.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return 0, writeErr("delete book", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) CountBooks(ctx context.Context) (int64, error) {
	n, err := s.books.EstimatedDocumentCount(ctx)
	return n, readErr("count books", err)
}

func (s *MongoStore) ListReviews(ctx context.Context) ([]domain.Review, error) {
	reviews, err := findAll(ctx, s.reviews, bson.M{}, reviewFromDoc)
	return reviews, readErr("list reviews", err)
}

// InsertReview seeds the review collection; reviews have no public write route.
func (s *MongoStore) InsertReview(ctx context.Context, r domain.Review) (string, error) {
	doc := reviewDoc{ID: newDocID(r.ID), Name: r.Name, Details: r.Details, Rating: r.Rating}
	res, err := s.reviews.InsertOne(ctx, doc)
	if err != nil {
		return "", writeErr("insert review", err)
	}
	return idString(res.InsertedID), nil
}

func (s *MongoStore) ListCartItems(ctx context.Context, email string) ([]domain.CartItem, error) {
	items, err := findAll(ctx, s.carts, bson.M{"email": email}, cartFromDoc)
	return items, readErr("list cart items", err)
}

func (s *MongoStore) InsertCartItem(ctx context.Context, item domain.CartItem) (string, error) {
	doc := cartToDoc(item)
	doc.ID = newDocID(item.ID)
	res, err := s.carts.InsertOne(ctx, doc)
	if err != nil {
		return "", writeErr("insert cart item", err)
	}
	return idString(res.InsertedID), nil
}

func (s *MongoStore) DeleteCartItem(ctx context.Context, id string) (int64, error) {
	res, err := s.carts.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return 0, writeErr("delete cart item", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteCartItems(ctx context.Context, ids []string) (int64, error) {
	candidates := candidatesOf(ids)
	if len(candidates) == 0 {
		return 0, nil
	}
	res, err := s.carts.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": candidates}})
	if err != nil {
		return 0, writeErr("delete cart items", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) InsertPayment(ctx context.Context, p domain.Payment) (string, error) {
	doc := paymentToDoc(p)
	doc.ID = newDocID(p.ID)
	res, err := s.payments.InsertOne(ctx, doc)
	if err != nil {
		return "", writeErr("insert payment", err)
	}
	return idString(res.InsertedID), nil
}

func (s *MongoStore) ListPaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error) {
	payments, err := findAll(ctx, s.payments, bson.M{"email": email}, paymentFromDoc)
	return payments, readErr("list payments", err)
}

func (s *MongoStore) CountPayments(ctx context.Context) (int64, error) {
	n, err := s.payments.EstimatedDocumentCount(ctx)
	return n, readErr("count payments", err)
}

func (s *MongoStore) TotalRevenue(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "totalRevenue": bson.M{"$sum": "$price"}}}},
	}
	cur, err := s.payments.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, readErr("total revenue", err)
	}
	var rows []struct {
		TotalRevenue float64 `bson:"totalRevenue"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, readErr("total revenue", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].TotalRevenue, nil
}

// orderStatsPipeline unwinds purchased ids, joins each against the catalog by
// either its string or ObjectID form, and groups the matches by category.
func orderStatsPipeline() mongo.Pipeline {
	asObjectID := bson.M{"$convert": bson.M{
		"input":   "$bookItemIds",
		"to":      "objectId",
		"onError": nil,
		"onNull":  nil,
	}}
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$bookItemIds"}},
		{{Key: "$lookup", Value: bson.M{
			"from": booksCollection,
			"let":  bson.M{"raw": "$bookItemIds", "oid": asObjectID},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$or": bson.A{
					bson.M{"$eq": bson.A{"$_id", "$$raw"}},
					bson.M{"$eq": bson.A{"$_id", "$$oid"}},
				}}}},
			},
			"as": "bookItems",
		}}},
		{{Key: "$unwind", Value: "$bookItems"}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$bookItems.category",
			"quantity": bson.M{"$sum": 1},
			"revenue":  bson.M{"$sum": "$bookItems.price"},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":      0,
			"category": "$_id",
			"quantity": 1,
			"revenue":  1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "category", Value: 1}}}},
	}
}

func (s *MongoStore) OrderStats(ctx context.Context) ([]domain.CategoryStat, error) {
	cur, err := s.payments.Aggregate(ctx, orderStatsPipeline())
	if err != nil {
		return nil, readErr("order stats", err)
	}
	var rows []struct {
		Category string  `bson:"category"`
		Quantity int64   `bson:"quantity"`
		Revenue  float64 `bson:"revenue"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, readErr("order stats", err)
	}
	out := make([]domain.CategoryStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.CategoryStat{Category: r.Category, Quantity: r.Quantity, Revenue: r.Revenue})
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func userToDoc(u domain.User) userDoc {
	role := u.Role
	if role == "" {
		role = domain.RoleRegular
	}
	return userDoc{Email: u.Email, Name: u.Name, Role: string(role)}
}

func userFromDoc(d userDoc) domain.User {
	return domain.User{ID: idString(d.ID), Email: d.Email, Name: d.Name, Role: domain.ParseRole(d.Role)}
}

func bookToDoc(b domain.Book) bookDoc {
	return bookDoc{Title: b.Title, Category: b.Category, Price: b.Price, Image: b.Image}
}

func bookFromDoc(d bookDoc) domain.Book {
	return domain.Book{ID: idString(d.ID), Title: d.Title, Category: d.Category, Price: d.Price, Image: d.Image}
}

func reviewFromDoc(d reviewDoc) domain.Review {
	return domain.Review{ID: idString(d.ID), Name: d.Name, Details: d.Details, Rating: d.Rating}
}

func cartToDoc(c domain.CartItem) cartDoc {
	return cartDoc{Email: c.Email, BookID: c.BookID, Title: c.Title, Price: c.Price, Image: c.Image}
}

func cartFromDoc(d cartDoc) domain.CartItem {
	return domain.CartItem{ID: idString(d.ID), Email: d.Email, BookID: d.BookID, Title: d.Title, Price: d.Price, Image: d.Image}
}

func paymentToDoc(p domain.Payment) paymentDoc {
	return paymentDoc{
		Email:         p.Email,
		Price:         p.Price,
		TransactionID: p.TransactionID,
		Date:          p.Date.UTC(),
		Status:        p.Status,
		BookItemIDs:   nonNil(p.BookItemIDs),
		CartIDs:       nonNil(p.CartIDs),
	}
}

func paymentFromDoc(d paymentDoc) domain.Payment {
	return domain.Payment{
		ID:            idString(d.ID),
		Email:         d.Email,
		Price:         d.Price,
		TransactionID: d.TransactionID,
		Date:          d.Date,
		Status:        d.Status,
		BookItemIDs:   nonNil(d.BookItemIDs),
		CartIDs:       nonNil(d.CartIDs),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ Store = (*MongoStore)(nil)
