package sourcestore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/ustahub/chatsync/pkg/user"
)

// SourceUserDao maps the marketplace 'users' table. The sync engine only
// reads it; the schema is owned by the upstream application.
type SourceUserDao struct {
	bun.BaseModel `bun:"table:users,alias:su"`

	ID                 string     `bun:"id,pk,type:uuid"`
	FirstName          string     `bun:"first_name"`
	LastName           string     `bun:"last_name"`
	Phone              *string    `bun:"phone"`
	Email              *string    `bun:"email"`
	EmailVerified      bool       `bun:"email_verified"`
	PhoneVerified      bool       `bun:"phone_verified"`
	Role               string     `bun:"role"`
	Status             string     `bun:"status"`
	Avatar             *string    `bun:"avatar"`
	Bio                *string    `bun:"bio"`
	RatingAvg          *float64   `bun:"rating_avg"`
	RatingCount        *int64     `bun:"rating_count"`
	PushNotifications  *bool      `bun:"push_notifications"`
	EmailNotifications *bool      `bun:"email_notifications"`
	SMSNotifications   *bool      `bun:"sms_notifications"`
	TermsAccepted      *bool      `bun:"terms_accepted"`
	IsVerified         *bool      `bun:"is_verified"`
	IsFeatured         *bool      `bun:"is_featured"`
	SearchBoost        *bool      `bun:"search_boost"`
	GoogleID           *string    `bun:"google_id"`
	AppleID            *string    `bun:"apple_id"`
	PasswordHash       *string    `bun:"password_hash"`
	CreatedAt          time.Time  `bun:"created_at"`
	UpdatedAt          time.Time  `bun:"updated_at"`
}

// toSourceUser converts a SourceUserDao to user.SourceUser.
func toSourceUser(dao *SourceUserDao) *user.SourceUser {
	return &user.SourceUser{
		ID:                 dao.ID,
		FirstName:          dao.FirstName,
		LastName:           dao.LastName,
		Phone:              dao.Phone,
		Email:              dao.Email,
		EmailVerified:      dao.EmailVerified,
		PhoneVerified:      dao.PhoneVerified,
		Role:               dao.Role,
		Status:             dao.Status,
		Avatar:             dao.Avatar,
		Bio:                dao.Bio,
		RatingAvg:          dao.RatingAvg,
		RatingCount:        dao.RatingCount,
		PushNotifications:  dao.PushNotifications,
		EmailNotifications: dao.EmailNotifications,
		SMSNotifications:   dao.SMSNotifications,
		TermsAccepted:      dao.TermsAccepted,
		IsVerified:         dao.IsVerified,
		IsFeatured:         dao.IsFeatured,
		SearchBoost:        dao.SearchBoost,
		GoogleID:           dao.GoogleID,
		AppleID:            dao.AppleID,
		PasswordHash:       dao.PasswordHash,
		CreatedAt:          dao.CreatedAt,
		UpdatedAt:          dao.UpdatedAt,
	}
}
