package models

// AuthorProfile is the public slice of an identity directory user.
// Username may be empty when the directory user never picked one.
type AuthorProfile struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username,omitempty"`
	ProfileImageURL string `json:"profile_image_url"`
}
