package server

import (
	"net/http"
	"strings"

	"bookshop/pkg/domain"
	"bookshop/pkg/storage"
	"github.com/go-chi/chi/v5"
)

type tokenRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type intentRequest struct {
	Price float64 `json:"price"`
}

type intentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type adminStatusResponse struct {
	Admin bool `json:"admin"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "shop.jwt.issue", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.app.IssueToken(req.Email)
	if err != nil {
		s.audit(r, "shop.jwt.issue", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "shop.jwt.issue", "success", "email", strings.TrimSpace(req.Email))
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// users

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.app.ListUsers(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.User
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.CreateUser(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := s.app.IsAdmin(r.Context(), chi.URLParam(r, "target"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminStatusResponse{Admin: admin})
}

func (s *Server) handleMakeAdmin(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	res, err := s.app.MakeAdmin(r.Context(), target)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "shop.user.promote", "success", "target_id", target, "matched", res.MatchedCount)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.DeleteUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// catalog

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.app.ListBooks(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.app.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req domain.Book
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.CreateBook(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	var req domain.BookUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.UpdateBook(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.DeleteBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxCoverBytes+maxJSONBody)
	if err := r.ParseMultipartForm(storage.MaxCoverBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	cover, err := s.app.UploadCover(r.Context(), chi.URLParam(r, "id"), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cover)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.app.ListReviews(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// carts & payments

func (s *Server) handleListCart(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.ListCart(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.CartItem
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.AddToCart(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.RemoveFromCart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	secret, err := s.app.CreatePaymentIntent(r.Context(), req.Price)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intentResponse{ClientSecret: secret})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized access")
		return
	}
	email := chi.URLParam(r, "email")
	payments, err := s.app.PaymentHistory(r.Context(), claims, email)
	if err != nil {
		s.audit(r, "shop.payments.history", "fail", "email", claims.Email, "reason", accessReason(err, "lookup_failed"))
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.Payment
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.RecordPayment(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// reports

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.AdminStats(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.OrderStats(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
