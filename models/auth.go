package models

import "time"

// AdminUser is the operator identity carried by an admin bearer token.
type AdminUser struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	IsAdmin  bool    `json:"is_admin"`
	StoreIDs []int64 `json:"store_ids,omitempty"`
}

// CanAccessStore reports whether the admin may look at a store's orders.
// An empty store list means all stores.
func (u *AdminUser) CanAccessStore(storeID int64) bool {
	if u == nil || !u.IsAdmin {
		return false
	}
	if len(u.StoreIDs) == 0 {
		return true
	}
	for _, id := range u.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// AdminAuthResponse is returned by the admin login and refresh endpoints.
type AdminAuthResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         AdminUser `json:"user"`
}

// AdminLoginRequest is the admin login body.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// AdminRefreshRequest exchanges a refresh token for a new pair.
type AdminRefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
