// Package model defines the data structures used throughout the application.
//
// Every entity here is persisted by the external backend; the web client only holds
// transient copies. JSON tags follow the backend's column names.
package model

import "time"

// User is the identity reported by the auth service.
//
// Username and AvatarURL come from the user's profile metadata and may be empty.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is what views show for the user: the username when set, else the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
