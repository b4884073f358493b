package domain

import "fmt"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts the stored role values. Older profiles carry "user"
// for customers.
func ParseRole(s string) (Role, error) {
	switch s {
	case "customer", "user":
		return RoleCustomer, nil
	case "vendor":
		return RoleVendor, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is what the auth collaborator resolves for a request.
type Identity struct {
	UserID    string
	Role      Role
	SessionID string
}

// Viewer is an identity plus the vendor it operates, if any.
type Viewer struct {
	UserID   string
	Role     Role
	VendorID string
}

type IdentityChangeReason string

const (
	IdentitySignedIn      IdentityChangeReason = "signed_in"
	IdentitySignedOut     IdentityChangeReason = "signed_out"
	IdentityVendorUpdated IdentityChangeReason = "vendor_updated"
)

// IdentityChange is published on the user's channel. SessionID names the
// session a sign-in or sign-out belongs to.
type IdentityChange struct {
	UserID    string               `json:"user_id"`
	SessionID string               `json:"session_id,omitempty"`
	Reason    IdentityChangeReason `json:"reason"`
}
