package models

// User is created on first sign-in and completed with a username afterwards.
type User struct {
	ID              string `json:"id" validate:"required"`
	Email           string `json:"email" validate:"required"`
	DisplayName     string `json:"displayName"`
	Username        string `json:"username,omitempty"`
	ChatDisplayName string `json:"chatDisplayName,omitempty"`
}

// Name is what other users see for this user.
func (u User) Name() string {
	if u.ChatDisplayName != "" {
		return u.ChatDisplayName
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// ProfileComplete reports whether the user has picked a username.
func (u User) ProfileComplete() bool {
	return u.Username != ""
}
