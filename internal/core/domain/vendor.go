package domain

import "time"

type VendorStatus string

const (
	VendorStatusPending  VendorStatus = "pending"
	VendorStatusApproved VendorStatus = "approved"
	VendorStatusBlocked  VendorStatus = "blocked"
)

type Vendor struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Name        string       `json:"vendor_name"`
	Description string       `json:"description,omitempty"`
	Status      VendorStatus `json:"status"`
	ImageURL    string       `json:"image_url,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Address     string       `json:"address,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// VendorSummary is the embedded form of a vendor on order and menu rows.
type VendorSummary struct {
	Name    string `json:"vendor_name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type VendorDecision string

const (
	DecisionApprove VendorDecision = "approve"
	DecisionReject  VendorDecision = "reject"
	DecisionBlock   VendorDecision = "block"
)

// Status returns the vendor status a decision moves to. Rejected
// applications are stored as blocked.
func (d VendorDecision) Status() (VendorStatus, bool) {
	switch d {
	case DecisionApprove:
		return VendorStatusApproved, true
	case DecisionReject, DecisionBlock:
		return VendorStatusBlocked, true
	}
	return "", false
}
