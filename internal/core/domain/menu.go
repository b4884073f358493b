package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID          string          `json:"id"`
	VendorID    string          `json:"vendor_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Available   bool            `json:"available"`
	Category    string          `json:"category,omitempty"`
	PrepTime    int             `json:"prep_time,omitempty"` // minutes
	Vendor      *VendorSummary  `json:"vendors,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	VendorID  string    `json:"vendor_id"`
	OrderID   string    `json:"order_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
