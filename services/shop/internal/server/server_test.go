package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookshop/internal/usertoken"
	"bookshop/pkg/domain"
	"bookshop/pkg/payment"
	"bookshop/pkg/store"
	"bookshop/services/shop/internal/app"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubIntents struct {
	err error
}

func (s *stubIntents) CreateIntent(_ context.Context, price float64) (payment.Intent, error) {
	if _, err := payment.AmountInCents(price); err != nil {
		return payment.Intent{}, err
	}
	if s.err != nil {
		return payment.Intent{}, s.err
	}
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_abc"}, nil
}

// failingStore fails selected writes with a cause carrying connection
// details that must never reach a response body.
type failingStore struct {
	*store.MemoryStore
	failInsertPayment bool
	failDeleteCart    bool
}

var errDriver = errors.New("dial tcp 10.0.0.7:27017: auth failed for shop:SECRET-PASS")

func (s *failingStore) InsertPayment(ctx context.Context, p domain.Payment) (string, error) {
	if s.failInsertPayment {
		return "", &store.OpError{Op: "insert payment", Kind: store.ErrWrite, Err: errDriver}
	}
	return s.MemoryStore.InsertPayment(ctx, p)
}

func (s *failingStore) DeleteCartItems(ctx context.Context, ids []string) (int64, error) {
	if s.failDeleteCart {
		return 0, &store.OpError{Op: "delete cart items", Kind: store.ErrWrite, Err: errDriver}
	}
	return s.MemoryStore.DeleteCartItems(ctx, ids)
}

type fixture struct {
	srv     *httptest.Server
	store   *store.MemoryStore
	tokens  *usertoken.Service
	intents *stubIntents
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	return newFixtureWithStore(t, cfg, nil)
}

// newFixtureWithStore lets a test wrap the memory store, for example to
// inject failures, while the fixture keeps seeding through the memory store.
func newFixtureWithStore(t *testing.T, cfg Config, wrap func(*store.MemoryStore) store.Store) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemoryStore(), intents: &stubIntents{}}
	var backing store.Store = f.store
	if wrap != nil {
		backing = wrap(f.store)
	}
	tokens, err := usertoken.NewService("server-test-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	f.tokens = tokens
	application, err := app.New(app.Config{Store: backing, Tokens: tokens, Payments: f.intents})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg.App = application
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	f.srv = httptest.NewServer(s.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) addUser(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	id, _, err := f.store.InsertUserIfAbsent(context.Background(), domain.User{Email: email, Role: role})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func (f *fixture) token(t *testing.T, email string) string {
	t.Helper()
	token, err := f.tokens.Issue(usertoken.Claims{Email: email})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func TestHealthAndBanner(t *testing.T) {
	f := newFixture(t, Config{})
	resp, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	resp, body = f.do(t, http.MethodGet, "/", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "running") {
		t.Fatalf("unexpected banner %d %s", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodGet, "/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), `"error"`) {
		t.Fatalf("expected JSON 404, got %d %s", resp.StatusCode, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t, Config{})
	book := domain.Book{Title: "Middlemarch", Category: "Classic", Price: 9}

	cases := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not.a.token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/book", tc.token, book)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d %s", resp.StatusCode, body)
			}
			for _, path := range []string{"/users", "/admin-stats", "/order-stats", "/payments/a@example.com"} {
				resp, _ := f.do(t, http.MethodGet, path, tc.token, nil)
				if resp.StatusCode != http.StatusUnauthorized {
					t.Fatalf("%s: expected 401, got %d", path, resp.StatusCode)
				}
			}
		})
	}

	n, _ := f.store.CountBooks(context.Background())
	if n != 0 {
		t.Fatalf("rejected requests must not mutate, got %d books", n)
	}
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	f := newFixture(t, Config{})
	f.addUser(t, "reader@example.com", domain.RoleRegular)
	victim := f.addUser(t, "victim@example.com", domain.RoleRegular)
	regular := f.token(t, "reader@example.com")
	stranger := f.token(t, "ghost@example.com")

	for _, token := range []string{regular, stranger} {
		resp, _ := f.do(t, http.MethodPost, "/book", token, domain.Book{Title: "x", Price: 1})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("create book: expected 403, got %d", resp.StatusCode)
		}
		resp, _ = f.do(t, http.MethodPatch, "/users/admin/"+victim, token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("make admin: expected 403, got %d", resp.StatusCode)
		}
		resp, _ = f.do(t, http.MethodDelete, "/users/"+victim, token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("delete user: expected 403, got %d", resp.StatusCode)
		}
		resp, _ = f.do(t, http.MethodGet, "/admin-stats", token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("admin stats: expected 403, got %d", resp.StatusCode)
		}
	}

	ctx := context.Background()
	if n, _ := f.store.CountBooks(ctx); n != 0 {
		t.Fatalf("expected no books, got %d", n)
	}
	user, ok, _ := f.store.GetUserByEmail(ctx, "victim@example.com")
	if !ok || user.Role != domain.RoleRegular {
		t.Fatalf("victim must be untouched, got %+v ok=%v", user, ok)
	}
}

func TestVerifyAdminWithoutVerifyToken(t *testing.T) {
	tokens, err := usertoken.NewService("server-test-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	application, err := app.New(app.Config{Store: store.NewMemoryStore(), Tokens: tokens, Payments: &stubIntents{}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	s, err := New(Config{App: application})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	called := false
	h := s.verifyAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without handler call, got %d called=%v", rec.Code, called)
	}
}

func TestAdminManagesCatalogAndUsers(t *testing.T) {
	f := newFixture(t, Config{})
	f.addUser(t, "admin@example.com", domain.RoleAdmin)
	member := f.addUser(t, "member@example.com", domain.RoleRegular)
	admin := f.token(t, "admin@example.com")

	resp, body := f.do(t, http.MethodPost, "/book", admin, domain.Book{Title: "Persuasion", Category: "Classic", Price: 7})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create book: %d %s", resp.StatusCode, body)
	}
	created := decode[app.InsertOutcome](t, body)

	resp, body = f.do(t, http.MethodPut, "/book/"+created.InsertedID, admin, domain.BookUpdate{Title: "Persuasion", Category: "Romance", Price: 8})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update book: %d %s", resp.StatusCode, body)
	}
	updated := decode[app.UpdateOutcome](t, body)
	if updated.MatchedCount != 1 || updated.ModifiedCount != 1 {
		t.Fatalf("unexpected update outcome %s", body)
	}

	resp, body = f.do(t, http.MethodGet, "/book/"+strings.ToUpper(created.InsertedID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get book: %d %s", resp.StatusCode, body)
	}
	book := decode[domain.Book](t, body)
	if book.Category != "Romance" || book.Price != 8 {
		t.Fatalf("unexpected book %+v", book)
	}

	resp, body = f.do(t, http.MethodDelete, "/book/"+created.InsertedID, admin, nil)
	if resp.StatusCode != http.StatusOK || decode[app.DeleteOutcome](t, body).DeletedCount != 1 {
		t.Fatalf("delete book: %d %s", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodGet, "/book/"+created.InsertedID, "", nil)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "null" {
		t.Fatalf("missing book must be null with 200, got %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPatch, "/users/admin/"+member, admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("make admin: %d %s", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodGet, "/users/admin/member@example.com", "", nil)
	if resp.StatusCode != http.StatusOK || !decode[adminStatusResponse](t, body).Admin {
		t.Fatalf("expected member to be admin, got %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodGet, "/users", admin, nil)
	if resp.StatusCode != http.StatusOK || len(decode[[]domain.User](t, body)) != 2 {
		t.Fatalf("list users: %d %s", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodDelete, "/users/"+member, admin, nil)
	if resp.StatusCode != http.StatusOK || decode[app.DeleteOutcome](t, body).DeletedCount != 1 {
		t.Fatalf("delete user: %d %s", resp.StatusCode, body)
	}
}

func TestCreateUserTwice(t *testing.T) {
	f := newFixture(t, Config{})
	user := map[string]string{"email": "dup@example.com", "name": "Dup", "role": "admin"}

	resp, body := f.do(t, http.MethodPost, "/users", "", user)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create user: %d %s", resp.StatusCode, body)
	}
	if decode[app.CreateUserResult](t, body).InsertedID == nil {
		t.Fatalf("expected inserted id, got %s", body)
	}
	resp, body = f.do(t, http.MethodPost, "/users", "", user)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create duplicate user: %d %s", resp.StatusCode, body)
	}
	raw := decode[map[string]any](t, body)
	if v, ok := raw["insertedId"]; !ok || v != nil {
		t.Fatalf("expected insertedId null, got %s", body)
	}

	resp, body = f.do(t, http.MethodGet, "/users/admin/dup@example.com", "", nil)
	if resp.StatusCode != http.StatusOK || decode[adminStatusResponse](t, body).Admin {
		t.Fatalf("self-registered users must not be admin, got %s", body)
	}
}

func TestCartCheckoutScenario(t *testing.T) {
	f := newFixture(t, Config{})
	email := "shopper@example.com"

	var cartIDs []string
	for _, item := range []domain.CartItem{
		{Email: email, BookID: "b1", Title: "Emma", Price: 5},
		{Email: email, BookID: "b2", Title: "Ulysses", Price: 12},
	} {
		resp, body := f.do(t, http.MethodPost, "/carts", "", item)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add to cart: %d %s", resp.StatusCode, body)
		}
		cartIDs = append(cartIDs, decode[app.InsertOutcome](t, body).InsertedID)
	}

	resp, body := f.do(t, http.MethodGet, "/carts?email="+email, "", nil)
	if resp.StatusCode != http.StatusOK || len(decode[[]domain.CartItem](t, body)) != 2 {
		t.Fatalf("list cart: %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/payments", "", map[string]any{
		"email":         email,
		"price":         17,
		"transactionId": "pi_123",
		"bookItemIds":   []string{"b1", "b2"},
		"cardIds":       cartIDs,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record payment: %d %s", resp.StatusCode, body)
	}
	res := decode[app.CheckoutResult](t, body)
	if !res.Payment.Acknowledged || res.Deletion.DeletedCount != 2 || res.Partial() {
		t.Fatalf("unexpected checkout result %s", body)
	}

	resp, body = f.do(t, http.MethodGet, "/carts?email="+email, "", nil)
	if resp.StatusCode != http.StatusOK || len(decode[[]domain.CartItem](t, body)) != 0 {
		t.Fatalf("expected empty cart, got %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodGet, "/payments/"+email, f.token(t, email), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment history: %d %s", resp.StatusCode, body)
	}
	history := decode[[]domain.Payment](t, body)
	if len(history) != 1 || history[0].TransactionID != "pi_123" {
		t.Fatalf("unexpected history %s", body)
	}
}

func TestRecordPaymentStoreFailureIsOpaque(t *testing.T) {
	f := newFixtureWithStore(t, Config{}, func(m *store.MemoryStore) store.Store {
		return &failingStore{MemoryStore: m, failInsertPayment: true}
	})
	email := "shopper@example.com"
	cartID, _ := f.store.InsertCartItem(context.Background(), domain.CartItem{Email: email, BookID: "b1", Price: 5})

	resp, body := f.do(t, http.MethodPost, "/payments", "", map[string]any{
		"email":   email,
		"price":   5,
		"cardIds": []string{cartID},
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 (%s)", resp.StatusCode, body)
	}
	if got := decode[map[string]string](t, body); got["error"] != "internal server error" {
		t.Fatalf("unexpected body %s", body)
	}
	for _, leak := range []string{"SECRET", "10.0.0.7", "insert payment", "store write failed"} {
		if strings.Contains(string(body), leak) {
			t.Fatalf("response leaks %q: %s", leak, body)
		}
	}

	items, err := f.store.ListCartItems(context.Background(), email)
	if err != nil || len(items) != 1 {
		t.Fatalf("cart should be untouched: %v %v", items, err)
	}
}

func TestRecordPaymentPartialDeletion(t *testing.T) {
	f := newFixtureWithStore(t, Config{}, func(m *store.MemoryStore) store.Store {
		return &failingStore{MemoryStore: m, failDeleteCart: true}
	})
	email := "shopper@example.com"
	cartID, _ := f.store.InsertCartItem(context.Background(), domain.CartItem{Email: email, BookID: "b1", Price: 5})

	resp, body := f.do(t, http.MethodPost, "/payments", "", map[string]any{
		"email":         email,
		"price":         5,
		"transactionId": "pi_9",
		"bookItemIds":   []string{"b1"},
		"cardIds":       []string{cartID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}
	res := decode[app.CheckoutResult](t, body)
	if !res.Payment.Acknowledged || res.Payment.InsertedID == "" {
		t.Fatalf("payment should be recorded: %s", body)
	}
	if res.Deletion.Acknowledged || res.Deletion.DeletedCount != 0 || res.Deletion.RequestedCount != 1 || !res.Partial() {
		t.Fatalf("unexpected deletion result: %s", body)
	}
	if res.Deletion.Error == "" {
		t.Fatalf("partial deletion should carry a message: %s", body)
	}
	for _, leak := range []string{"SECRET", "10.0.0.7", "delete cart items"} {
		if strings.Contains(string(body), leak) {
			t.Fatalf("response leaks %q: %s", leak, body)
		}
	}

	history, err := f.store.ListPaymentsByEmail(context.Background(), email)
	if err != nil || len(history) != 1 || history[0].TransactionID != "pi_9" {
		t.Fatalf("payment history = %v %v", history, err)
	}
}

func TestListCartRequiresEmail(t *testing.T) {
	f := newFixture(t, Config{})
	resp, body := f.do(t, http.MethodGet, "/carts", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", resp.StatusCode, body)
	}
}

func TestPaymentHistoryRequiresOwnEmail(t *testing.T) {
	f := newFixture(t, Config{})
	resp, body := f.do(t, http.MethodGet, "/payments/owner@example.com", f.token(t, "other@example.com"), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", resp.StatusCode, body)
	}
}

func TestReportsForAdmin(t *testing.T) {
	f := newFixture(t, Config{})
	f.addUser(t, "boss@example.com", domain.RoleAdmin)
	admin := f.token(t, "boss@example.com")

	resp, body := f.do(t, http.MethodGet, "/admin-stats", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin stats: %d %s", resp.StatusCode, body)
	}
	stats := decode[domain.AdminStats](t, body)
	if stats.Users != 1 || stats.Orders != 0 || stats.Revenue != 0 {
		t.Fatalf("unexpected stats %s", body)
	}

	ctx := context.Background()
	bookID, err := f.store.InsertBook(ctx, domain.Book{Title: "Beloved", Category: "Fiction", Price: 10})
	if err != nil {
		t.Fatalf("insert book: %v", err)
	}
	if _, err := f.store.InsertPayment(ctx, domain.Payment{Email: "x@example.com", Price: 30, BookItemIDs: []string{bookID, "deleted-book"}}); err != nil {
		t.Fatalf("insert payment: %v", err)
	}
	resp, body = f.do(t, http.MethodGet, "/order-stats", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("order stats: %d %s", resp.StatusCode, body)
	}
	got := decode[[]domain.CategoryStat](t, body)
	if len(got) != 1 || got[0] != (domain.CategoryStat{Category: "Fiction", Quantity: 1, Revenue: 10}) {
		t.Fatalf("unexpected order stats %s", body)
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	f := newFixture(t, Config{})
	cases := []struct {
		name   string
		price  float64
		err    error
		status int
	}{
		{name: "ok", price: 19.99, status: http.StatusOK},
		{name: "zero price", price: 0, status: http.StatusBadRequest},
		{name: "rejected", price: 5, err: fmt.Errorf("%w: card_declined", payment.ErrUpstream), status: http.StatusBadGateway},
		{name: "breaker open", price: 5, err: payment.ErrUnavailable, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.intents.err = tc.err
			resp, body := f.do(t, http.MethodPost, "/create-payment-intent", "", intentRequest{Price: tc.price})
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d %s", tc.status, resp.StatusCode, body)
			}
			if tc.status == http.StatusOK && decode[intentResponse](t, body).ClientSecret != "pi_1_secret_abc" {
				t.Fatalf("unexpected body %s", body)
			}
		})
	}
}

func TestIssueToken(t *testing.T) {
	f := newFixture(t, Config{})
	resp, body := f.do(t, http.MethodPost, "/jwt", "", tokenRequest{Email: "t@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("issue token: %d %s", resp.StatusCode, body)
	}
	claims, err := f.tokens.Verify(decode[tokenResponse](t, body).Token)
	if err != nil || claims.Email != "t@example.com" {
		t.Fatalf("issued token did not verify: %+v %v", claims, err)
	}
	resp, _ = f.do(t, http.MethodPost, "/jwt", "", tokenRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank email, got %d", resp.StatusCode)
	}
}

func TestTokenRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, Config{Redis: client, RateLimitPerMinute: 1})

	resp, body := f.do(t, http.MethodPost, "/jwt", "", tokenRequest{Email: "r@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request expected 200, got %d %s", resp.StatusCode, body)
	}
	resp, _ = f.do(t, http.MethodPost, "/jwt", "", tokenRequest{Email: "r@example.com"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	resp, _ = f.do(t, http.MethodPost, "/create-payment-intent", "", intentRequest{Price: 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("limits are per route, got %d", resp.StatusCode)
	}
}

func TestRateLimiterFailureDenies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, Config{Redis: client, RateLimitPerMinute: 5})
	mr.Close()

	resp, _ := f.do(t, http.MethodPost, "/jwt", "", tokenRequest{Email: "r@example.com"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when limiter is down, got %d", resp.StatusCode)
	}
}
