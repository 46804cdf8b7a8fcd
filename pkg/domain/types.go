package domain

import (
	"strings"
	"time"
)

// Role is the permission tier attached to a user record.
type Role string

const (
	RoleRegular Role = "regular"
	RoleAdmin   Role = "admin"
)

// ParseRole maps stored role values to a Role. Unknown or empty values are regular.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleRegular
}

// Allows reports whether r satisfies the required tier.
func (r Role) Allows(required Role) bool {
	if required == RoleAdmin {
		return r == RoleAdmin
	}
	return true
}

type User struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Book is a catalog entry. Its ID may originate from either a plain string
// or an ObjectID; callers always see the string form.
type Book struct {
	ID       string  `json:"_id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
}

// BookUpdate carries the mutable catalog fields.
type BookUpdate struct {
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
}

type Review struct {
	ID      string  `json:"_id"`
	Name    string  `json:"name"`
	Details string  `json:"details"`
	Rating  float64 `json:"rating"`
}

// CartItem belongs to exactly one user, keyed by email.
type CartItem struct {
	ID     string  `json:"_id"`
	Email  string  `json:"email"`
	BookID string  `json:"bookId"`
	Title  string  `json:"title,omitempty"`
	Price  float64 `json:"price"`
	Image  string  `json:"image,omitempty"`
}

// Payment is an immutable record of a completed checkout.
type Payment struct {
	ID            string    `json:"_id,omitempty"`
	Email         string    `json:"email"`
	Price         float64   `json:"price"`
	TransactionID string    `json:"transactionId,omitempty"`
	Date          time.Time `json:"date"`
	Status        string    `json:"status,omitempty"`
	BookItemIDs   []string  `json:"bookItemIds"`
	CartIDs       []string  `json:"cardIds"`
}

// AdminStats summarizes store-wide counts and revenue.
type AdminStats struct {
	Users     int64   `json:"users"`
	BookItems int64   `json:"bookItems"`
	Orders    int64   `json:"orders"`
	Revenue   float64 `json:"revenue"`
}

// CategoryStat is one group of the order breakdown.
type CategoryStat struct {
	Category string  `json:"category"`
	Quantity int64   `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}
