// Package transform maps marketplace user records to chat user records.
// It is pure computation: no I/O, no state.
package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ustahub/chatsync/pkg/user"
)

const (
	// nameFallbackPrefix builds a display name for users with no name parts.
	nameFallbackPrefix = "User "

	// placeholderLeadDigit distinguishes synthesized phones from real ones.
	placeholderLeadDigit = "9"

	// placeholderMinDigits is the zero-padded width of the derived number.
	placeholderMinDigits = 9

	idHexChars = 8
)

// roleMap maps source role strings (lowercased) to chat roles.
var roleMap = map[string]string{
	"service_provider": user.RoleUsta,
	"provider":         user.RoleUsta,
	"usta":             user.RoleUsta,
	"customer":         user.RoleMusteri,
	"client":           user.RoleMusteri,
	"musteri":          user.RoleMusteri,
	"admin":            user.RoleAdmin,
}

// Transform converts one source record into its chat projection. It fails
// only when the source record has no identity.
func Transform(src *user.SourceUser) (*user.ChatUser, error) {
	if src == nil || src.ID == "" {
		return nil, fmt.Errorf("source user has no id")
	}

	first := strings.TrimSpace(src.FirstName)
	last := strings.TrimSpace(src.LastName)

	return &user.ChatUser{
		ExternalID: src.ID,
		Name:       displayName(first, last, src.ID),
		FirstName:  first,
		LastName:   last,
		Phone:      sanitizePhone(src.Phone, src.ID),
		Email:      verifiedEmail(src),
		Role:       MapRole(src.Role),
		Avatar:     src.Avatar,
		Metadata:   buildMetadata(src),
		CreatedAt:  src.CreatedAt,
		UpdatedAt:  src.UpdatedAt,
	}, nil
}

// displayName concatenates the trimmed name parts. When both are empty it
// derives a stable fallback from the id so the chat display name is never
// blank.
func displayName(first, last, id string) string {
	name := strings.TrimSpace(first + " " + last)
	if name != "" {
		return name
	}
	short := id
	if len(short) > idHexChars {
		short = short[:idHexChars]
	}
	return nameFallbackPrefix + short
}

// sanitizePhone strips a real phone down to its digits, or synthesizes a
// placeholder when no usable phone exists.
func sanitizePhone(phone *string, id string) string {
	if phone == nil || strings.TrimSpace(*phone) == "" {
		return PlaceholderPhone(id)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, *phone)
	if digits == "" {
		return PlaceholderPhone(id)
	}
	return digits
}

// PlaceholderPhone derives a deterministic numeric phone from the id: the
// first 8 hex characters (separators stripped) interpreted base 16, rendered
// decimal, zero-padded to 9 digits, prefixed with a fixed lead digit. Unique
// as long as ids differ in their first 8 hex characters; collisions in the
// truncated space are a known, bounded-probability edge case.
func PlaceholderPhone(id string) string {
	hexPart := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
			return r
		case r >= 'A' && r <= 'F':
			return r + ('a' - 'A')
		}
		return -1
	}, id)
	if len(hexPart) > idHexChars {
		hexPart = hexPart[:idHexChars]
	}
	if hexPart == "" {
		hexPart = "0"
	}
	n, _ := strconv.ParseUint(hexPart, 16, 64)
	return placeholderLeadDigit + fmt.Sprintf("%0*d", placeholderMinDigits, n)
}

// verifiedEmail passes the source email through only when the upstream
// verified flag is set. Unverified emails must never reach the chat store.
func verifiedEmail(src *user.SourceUser) *string {
	if !src.EmailVerified || src.Email == nil || *src.Email == "" {
		return nil
	}
	email := *src.Email
	return &email
}

// MapRole maps a source role (case-insensitive) to a chat role, defaulting
// to the lowest-privilege role for unknown or missing values.
func MapRole(role string) string {
	if mapped, ok := roleMap[strings.ToLower(strings.TrimSpace(role))]; ok {
		return mapped
	}
	return user.RoleMusteri
}

func buildMetadata(src *user.SourceUser) user.Metadata {
	return user.Metadata{
		EmailVerified:      src.EmailVerified,
		PhoneVerified:      src.PhoneVerified,
		GoogleID:           src.GoogleID,
		AppleID:            src.AppleID,
		PushNotifications:  boolOr(src.PushNotifications, true),
		EmailNotifications: boolOr(src.EmailNotifications, true),
		SMSNotifications:   boolOr(src.SMSNotifications, false),
		TermsAccepted:      boolOr(src.TermsAccepted, false),
		RatingAvg:          floatOr(src.RatingAvg, 0),
		RatingCount:        intOr(src.RatingCount, 0),
		IsVerified:         boolOr(src.IsVerified, false),
		IsFeatured:         boolOr(src.IsFeatured, false),
		SearchBoost:        boolOr(src.SearchBoost, false),
		Bio:                src.Bio,
		HasPassword:        src.PasswordHash != nil && *src.PasswordHash != "",
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}
