package transform

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ustahub/chatsync/pkg/user"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestTransform_ServiceProviderWithoutNameOrPhone(t *testing.T) {
	src := &user.SourceUser{
		ID:            "abc123ef-0000-4000-8000-000000000000",
		FirstName:     "",
		LastName:      "",
		Phone:         nil,
		Email:         strPtr("x@y.com"),
		EmailVerified: false,
		Role:          "service_provider",
		Status:        user.StatusActive,
	}

	got, err := Transform(src)
	require.NoError(t, err)

	assert.Equal(t, "User abc123ef", got.Name)
	// 0xabc123ef == 2882343919
	assert.Equal(t, "92882343919", got.Phone)
	assert.Nil(t, got.Email, "unverified email must not leak into the chat store")
	assert.Equal(t, user.RoleUsta, got.Role)
	assert.Equal(t, src.ID, got.ExternalID)
}

func TestTransform_MissingIDFails(t *testing.T) {
	_, err := Transform(&user.SourceUser{})
	require.Error(t, err)

	_, err = Transform(nil)
	require.Error(t, err)
}

func TestTransform_VerifiedEmailPassesThrough(t *testing.T) {
	src := &user.SourceUser{
		ID:            uuid.NewString(),
		Email:         strPtr("x@y.com"),
		EmailVerified: true,
	}

	got, err := Transform(src)
	require.NoError(t, err)
	require.NotNil(t, got.Email)
	assert.Equal(t, "x@y.com", *got.Email)
	assert.True(t, got.Metadata.EmailVerified)
}

func TestTransform_RealPhoneStrippedToDigits(t *testing.T) {
	src := &user.SourceUser{
		ID:    uuid.NewString(),
		Phone: strPtr("+90 (532) 123-45-67"),
	}

	got, err := Transform(src)
	require.NoError(t, err)
	assert.Equal(t, "905321234567", got.Phone)
}

func TestTransform_PhoneWithNoDigitsFallsBackToPlaceholder(t *testing.T) {
	id := uuid.NewString()
	src := &user.SourceUser{
		ID:    id,
		Phone: strPtr("n/a"),
	}

	got, err := Transform(src)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderPhone(id), got.Phone)
}

func TestTransform_NameConcatenation(t *testing.T) {
	src := &user.SourceUser{
		ID:        uuid.NewString(),
		FirstName: "  Ayşe ",
		LastName:  " Yılmaz ",
	}

	got, err := Transform(src)
	require.NoError(t, err)
	assert.Equal(t, "Ayşe Yılmaz", got.Name)
	assert.Equal(t, "Ayşe", got.FirstName)
	assert.Equal(t, "Yılmaz", got.LastName)
}

func TestPlaceholderPhone_Deterministic(t *testing.T) {
	id := uuid.NewString()
	first := PlaceholderPhone(id)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, PlaceholderPhone(id))
	}
}

func TestPlaceholderPhone_DistinctForDistinctPrefixes(t *testing.T) {
	a := PlaceholderPhone("00000001-aaaa-4000-8000-000000000000")
	b := PlaceholderPhone("00000002-aaaa-4000-8000-000000000000")
	assert.NotEqual(t, a, b)
}

func TestPlaceholderPhone_Format(t *testing.T) {
	got := PlaceholderPhone("00000001-aaaa-4000-8000-000000000000")
	// Lead digit plus the value zero-padded to nine digits.
	assert.Equal(t, "9000000001", got)
}

func TestMapRole(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"service_provider", user.RoleUsta},
		{"SERVICE_PROVIDER", user.RoleUsta},
		{"provider", user.RoleUsta},
		{"customer", user.RoleMusteri},
		{"Admin", user.RoleAdmin},
		{"", user.RoleMusteri},
		{"something_new", user.RoleMusteri},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapRole(tc.in), "role %q", tc.in)
	}
}

func TestBuildMetadata_Defaults(t *testing.T) {
	src := &user.SourceUser{ID: uuid.NewString()}

	got, err := Transform(src)
	require.NoError(t, err)

	md := got.Metadata
	assert.True(t, md.PushNotifications)
	assert.True(t, md.EmailNotifications)
	assert.False(t, md.SMSNotifications)
	assert.False(t, md.TermsAccepted)
	assert.Zero(t, md.RatingAvg)
	assert.Zero(t, md.RatingCount)
	assert.False(t, md.IsVerified)
	assert.False(t, md.HasPassword)
}

func TestBuildMetadata_Passthrough(t *testing.T) {
	rating := 4.7
	count := int64(12)
	src := &user.SourceUser{
		ID:                uuid.NewString(),
		PhoneVerified:     true,
		RatingAvg:         &rating,
		RatingCount:       &count,
		SMSNotifications:  boolPtr(true),
		PushNotifications: boolPtr(false),
		TermsAccepted:     boolPtr(true),
		GoogleID:          strPtr("google-123"),
		PasswordHash:      strPtr("$2a$10$abcdef"),
		Bio:               strPtr("tesisatçı"),
		CreatedAt:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	got, err := Transform(src)
	require.NoError(t, err)

	md := got.Metadata
	assert.True(t, md.PhoneVerified)
	assert.Equal(t, 4.7, md.RatingAvg)
	assert.Equal(t, int64(12), md.RatingCount)
	assert.True(t, md.SMSNotifications)
	assert.False(t, md.PushNotifications)
	assert.True(t, md.TermsAccepted)
	assert.True(t, md.HasPassword)
	require.NotNil(t, md.Bio)
	assert.Equal(t, "tesisatçı", *md.Bio)
	assert.Equal(t, src.CreatedAt, got.CreatedAt)
}
