package chatdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/ustahub/chatsync/pkg/chatstore"
	mghelper "github.com/ustahub/chatsync/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating sync_errors table...")
		if err := mghelper.CreateSchema(ctx, db, &chatstore.SyncErrorDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &chatstore.SyncErrorDao{}, "error_type", "user_id", "created_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping sync_errors table...")
		return mghelper.DropTables(ctx, db, &chatstore.SyncErrorDao{})
	})
}
