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
		log.Println("creating chat_users table...")
		if err := mghelper.CreateSchema(ctx, db, &chatstore.ChatUserDao{}); err != nil {
			return err
		}
		// external_id is the idempotency key of the upsert path; phone is
		// unique in the chat application's own schema.
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &chatstore.ChatUserDao{}, "external_id", "phone"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &chatstore.ChatUserDao{}, "role")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping chat_users table...")
		return mghelper.DropTables(ctx, db, &chatstore.ChatUserDao{})
	})
}
