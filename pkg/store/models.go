package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used by the Postgres store.
type UserModel struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Name      string
	Role      string    `gorm:"not null;default:regular"`
	CreatedAt time.Time `gorm:"not null"`
}

type BookModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Category  string `gorm:"not null;index"`
	Price     float64
	Image     string
	CreatedAt time.Time `gorm:"not null"`
}

type ReviewModel struct {
	ID      string `gorm:"primaryKey"`
	Name    string
	Details string `gorm:"type:text"`
	Rating  float64
}

type CartItemModel struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"not null;index"`
	BookID    string
	Title     string
	Price     float64
	Image     string
	CreatedAt time.Time `gorm:"not null"`
}

// PaymentModel keeps the purchased book ids and cleared cart ids as jsonb
// arrays so the order report can unnest them.
type PaymentModel struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"not null;index"`
	Price         float64
	TransactionID string
	Date          time.Time
	Status        string
	BookItemIDs   datatypes.JSON `gorm:"type:jsonb"`
	CartIDs       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index"`
}
