// Package user holds the domain types shared by the sync engine: the
// marketplace's source user record and the chat application's projection.
package user

import "time"

// Chat application roles. Unknown source roles map to the lowest-privilege
// role, RoleMusteri.
const (
	RoleUsta    = "usta"
	RoleMusteri = "musteri"
	RoleAdmin   = "admin"
)

// StatusActive is the only source status eligible for synchronization.
const StatusActive = "active"

// SourceUser is one row of the marketplace users table. The engine never
// writes to it. JSON tags match the column names emitted by row_to_json in
// the change-capture trigger payloads.
type SourceUser struct {
	ID                 string     `json:"id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Phone              *string    `json:"phone"`
	Email              *string    `json:"email"`
	EmailVerified      bool       `json:"email_verified"`
	PhoneVerified      bool       `json:"phone_verified"`
	Role               string     `json:"role"`
	Status             string     `json:"status"`
	Avatar             *string    `json:"avatar"`
	Bio                *string    `json:"bio"`
	RatingAvg          *float64   `json:"rating_avg"`
	RatingCount        *int64     `json:"rating_count"`
	PushNotifications  *bool      `json:"push_notifications"`
	EmailNotifications *bool      `json:"email_notifications"`
	SMSNotifications   *bool      `json:"sms_notifications"`
	TermsAccepted      *bool      `json:"terms_accepted"`
	IsVerified         *bool      `json:"is_verified"`
	IsFeatured         *bool      `json:"is_featured"`
	SearchBoost        *bool      `json:"search_boost"`
	GoogleID           *string    `json:"google_id"`
	AppleID            *string    `json:"apple_id"`
	PasswordHash       *string    `json:"password_hash"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Eligible reports whether the record may be synced into the chat store.
func (u *SourceUser) Eligible() bool {
	return u.ID != "" && u.Status == StatusActive
}

// ChatUser is the engine-owned projection written to the chat application's
// chat_users table. ExternalID carries the source id and is the idempotency
// key for upserts. Presence fields (online status, socket id, last seen)
// belong to the chat runtime and are never written by the sync.
type ChatUser struct {
	ExternalID string
	Name       string
	FirstName  string
	LastName   string
	Phone      string
	Email      *string
	Role       string
	Avatar     *string
	Metadata   Metadata
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Metadata is the verification/rating/preference snapshot bundled into the
// chat_users.metadata JSONB column. Every field carries an explicit default
// so the destination never stores ambiguous nulls.
type Metadata struct {
	EmailVerified      bool    `json:"email_verified"`
	PhoneVerified      bool    `json:"phone_verified"`
	GoogleID           *string `json:"google_id"`
	AppleID            *string `json:"apple_id"`
	PushNotifications  bool    `json:"push_notifications"`
	EmailNotifications bool    `json:"email_notifications"`
	SMSNotifications   bool    `json:"sms_notifications"`
	TermsAccepted      bool    `json:"terms_accepted"`
	RatingAvg          float64 `json:"rating_avg"`
	RatingCount        int64   `json:"rating_count"`
	IsVerified         bool    `json:"is_verified"`
	IsFeatured         bool    `json:"is_featured"`
	SearchBoost        bool    `json:"search_boost"`
	Bio                *string `json:"bio,omitempty"`
	HasPassword        bool    `json:"has_password"`
}
