package domain

import "time"

// Profile is the social-profile document stored in the profile store,
// keyed by the identity provider's stable user ID.
type Profile struct {
	ID          string     `bson:"_id"`
	Email       string     `bson:"email,omitempty"`
	PhoneNumber string     `bson:"phone_number,omitempty"`
	Username    string     `bson:"username"`
	FullName    string     `bson:"full_name,omitempty"`
	Bio         string     `bson:"bio"`
	AvatarURL   string     `bson:"photo_url,omitempty"`
	Followers   []string   `bson:"followers"`
	Following   []string   `bson:"following"`
	Verified    bool       `bson:"verified,omitempty"`
	CreatedVia  Provenance `bson:"created_via,omitempty"`
	JoinedAt    time.Time  `bson:"joined_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}
