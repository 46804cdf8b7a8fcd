package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"bookshop/internal/usertoken"
	"bookshop/pkg/domain"
	"bookshop/pkg/storage"
	"bookshop/pkg/store"
	"bookshop/services/shop/internal/app"
)

type bucketCovers struct {
	objects map[string][]byte
}

func (b *bucketCovers) PutCover(_ context.Context, bookID string, r io.Reader, _ int64, contentType string) (storage.Cover, error) {
	key, err := storage.CoverKey(bookID, contentType)
	if err != nil {
		return storage.Cover{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Cover{}, err
	}
	b.objects[key] = data
	return storage.Cover{Key: key, URL: storage.PublicURL("http://covers.local/bookshop", key)}, nil
}

func (b *bucketCovers) DeleteCover(_ context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

func coverRequest(t *testing.T, url, token, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="cover"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadCover(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	covers := &bucketCovers{objects: map[string][]byte{}}
	tokens, err := usertoken.NewService("cover-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	application, err := app.New(app.Config{Store: mem, Tokens: tokens, Payments: &stubIntents{}, Covers: covers})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	s, err := New(Config{App: application})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	if _, _, err := mem.InsertUserIfAbsent(ctx, domain.User{Email: "curator@example.com", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("insert admin: %v", err)
	}
	bookID, err := mem.InsertBook(ctx, domain.Book{Title: "Walden", Category: "Essay", Price: 6})
	if err != nil {
		t.Fatalf("insert book: %v", err)
	}
	token, err := tokens.Issue(usertoken.Claims{Email: "curator@example.com"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp, err := http.DefaultClient.Do(coverRequest(t, srv.URL+"/book/"+bookID+"/cover", token, "image/jpeg", []byte("jpeg-bytes")))
	if err != nil {
		t.Fatalf("upload cover: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	book, ok, err := mem.GetBook(ctx, bookID)
	if err != nil || !ok {
		t.Fatalf("get book: ok=%v err=%v", ok, err)
	}
	if len(covers.objects) != 1 || book.Image == "" {
		t.Fatalf("expected stored cover and image url, got %d objects, image %q", len(covers.objects), book.Image)
	}

	resp, err = http.DefaultClient.Do(coverRequest(t, srv.URL+"/book/"+bookID+"/cover", token, "text/plain", []byte("nope")))
	if err != nil {
		t.Fatalf("upload text: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for text upload, got %d", resp.StatusCode)
	}

	resp, err = http.DefaultClient.Do(coverRequest(t, srv.URL+"/book/000000000000000000000000/cover", token, "image/png", []byte("png")))
	if err != nil {
		t.Fatalf("upload missing book: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing book, got %d", resp.StatusCode)
	}
}
