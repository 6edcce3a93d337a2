package chatstore

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ustahub/chatsync/pkg/pgutil"
	"github.com/ustahub/chatsync/pkg/retry"
	"github.com/ustahub/chatsync/pkg/transform"
	"github.com/ustahub/chatsync/pkg/user"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := CreateSchema(ctx, db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	runner := retry.NewRunner(retry.Config{
		MaxAttempts:  2,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2,
	})
	return ctx, NewStore(db, runner)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed chatstore tests")
}

func newChatUser(t *testing.T) *user.ChatUser {
	t.Helper()

	email := "usta@example.com"
	src := &user.SourceUser{
		ID:            uuid.NewString(),
		FirstName:     "Mehmet",
		LastName:      "Demir",
		Email:         &email,
		EmailVerified: true,
		Role:          "service_provider",
		Status:        user.StatusActive,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	cu, err := transform.Transform(src)
	require.NoError(t, err)
	return cu
}

func TestUpsert_InsertThenUpdateKeepsOneRow(t *testing.T) {
	ctx, store := setupStore(t)

	cu := newChatUser(t)
	require.NoError(t, store.Upsert(ctx, cu))

	// Second upsert with changed fields must update in place.
	cu.Name = "Mehmet Usta"
	cu.Role = user.RoleAdmin
	cu.Phone = "905551112233"
	require.NoError(t, store.Upsert(ctx, cu))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.GetByExternalID(ctx, cu.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, "Mehmet Usta", got.Name)
	assert.Equal(t, user.RoleAdmin, got.Role)
	assert.Equal(t, "905551112233", got.Phone)
}

func TestUpsert_IdenticalRecordIsIdempotent(t *testing.T) {
	ctx, store := setupStore(t)

	cu := newChatUser(t)
	require.NoError(t, store.Upsert(ctx, cu))
	require.NoError(t, store.Upsert(ctx, cu))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDelete_RemovesRow(t *testing.T) {
	ctx, store := setupStore(t)

	cu := newChatUser(t)
	require.NoError(t, store.Upsert(ctx, cu))
	require.NoError(t, store.Delete(ctx, cu.ExternalID))

	_, err := store.GetByExternalID(ctx, cu.ExternalID)
	assert.ErrorIs(t, err, ErrChatUserNotFound)
}

func TestDelete_MissingRowIsNotAnError(t *testing.T) {
	ctx, store := setupStore(t)
	assert.NoError(t, store.Delete(ctx, uuid.NewString()))
}

func TestInsertSyncError_AppendsRow(t *testing.T) {
	ctx, store := setupStore(t)

	userID := uuid.NewString()
	err := store.InsertSyncError(ctx, &SyncErrorEntry{
		Type:       "user_sync_failed",
		UserID:     userID,
		Message:    "upsert failed after retries",
		Stack:      "goroutine 1 [running]: ...",
		Context:    map[string]any{"offset": 200, "name": "Mehmet Demir"},
		RetryCount: 3,
	})
	require.NoError(t, err)

	var daos []SyncErrorDao
	require.NoError(t, store.db.NewSelect().Model(&daos).Scan(ctx))
	require.Len(t, daos, 1)
	assert.Equal(t, "user_sync_failed", daos[0].ErrorType)
	require.NotNil(t, daos[0].UserID)
	assert.Equal(t, userID, *daos[0].UserID)
	assert.False(t, daos[0].Resolved)
	assert.Equal(t, 3, daos[0].RetryCount)
}

func TestMetadataRoundTrip(t *testing.T) {
	ctx, store := setupStore(t)

	bio := "elektrikçi"
	cu := newChatUser(t)
	cu.Metadata.Bio = &bio
	cu.Metadata.RatingAvg = 4.2
	cu.Metadata.RatingCount = 9
	require.NoError(t, store.Upsert(ctx, cu))

	got, err := store.GetByExternalID(ctx, cu.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, 4.2, got.Metadata.RatingAvg)
	assert.Equal(t, int64(9), got.Metadata.RatingCount)
	require.NotNil(t, got.Metadata.Bio)
	assert.Equal(t, "elektrikçi", *got.Metadata.Bio)
	assert.True(t, got.Metadata.EmailVerified)
}
