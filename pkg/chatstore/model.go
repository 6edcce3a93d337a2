package chatstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/ustahub/chatsync/pkg/user"
)

// ChatUserDao maps the 'chat_users' table in the chat database. The sync
// engine owns every column it writes; presence columns (is_online,
// socket_id, last_seen) are owned by the chat runtime and are never touched
// by upserts.
type ChatUserDao struct {
	bun.BaseModel `bun:"table:chat_users,alias:cu"`

	ID         int64         `bun:"id,pk,autoincrement"`
	ExternalID string        `bun:"external_id,unique,notnull,type:uuid"`
	Name       string        `bun:"name,notnull,type:varchar(255)"`
	FirstName  string        `bun:"first_name,type:varchar(255)"`
	LastName   string        `bun:"last_name,type:varchar(255)"`
	Phone      string        `bun:"phone,unique,notnull,type:varchar(32)"`
	Email      *string       `bun:"email,type:varchar(255)"`
	Role       string        `bun:"role,notnull,type:varchar(32)"`
	Avatar     *string       `bun:"avatar,type:text"`
	Metadata   user.Metadata `bun:"metadata,type:jsonb"`
	IsOnline   bool          `bun:"is_online,notnull,default:false"`
	SocketID   *string       `bun:"socket_id,type:varchar(128)"`
	LastSeen   *time.Time    `bun:"last_seen"`
	CreatedAt  time.Time     `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt  time.Time     `bun:"updated_at,nullzero,default:current_timestamp"`
}

// toChatUserDao converts a user.ChatUser to ChatUserDao.
func toChatUserDao(cu *user.ChatUser) *ChatUserDao {
	return &ChatUserDao{
		ExternalID: cu.ExternalID,
		Name:       cu.Name,
		FirstName:  cu.FirstName,
		LastName:   cu.LastName,
		Phone:      cu.Phone,
		Email:      cu.Email,
		Role:       cu.Role,
		Avatar:     cu.Avatar,
		Metadata:   cu.Metadata,
		CreatedAt:  cu.CreatedAt,
		UpdatedAt:  cu.UpdatedAt,
	}
}

// toChatUser converts a ChatUserDao to user.ChatUser.
func toChatUser(dao *ChatUserDao) *user.ChatUser {
	return &user.ChatUser{
		ExternalID: dao.ExternalID,
		Name:       dao.Name,
		FirstName:  dao.FirstName,
		LastName:   dao.LastName,
		Phone:      dao.Phone,
		Email:      dao.Email,
		Role:       dao.Role,
		Avatar:     dao.Avatar,
		Metadata:   dao.Metadata,
		CreatedAt:  dao.CreatedAt,
		UpdatedAt:  dao.UpdatedAt,
	}
}

// SyncErrorDao maps the append-only 'sync_errors' audit table. Rows are
// created by the engine and only resolved manually by operators.
type SyncErrorDao struct {
	bun.BaseModel `bun:"table:sync_errors,alias:se"`

	ID         int64          `bun:"id,pk,autoincrement"`
	ErrorType  string         `bun:"error_type,notnull,type:varchar(64)"`
	UserID     *string        `bun:"user_id,type:uuid"`
	Message    string         `bun:"message,notnull,type:text"`
	Stack      string         `bun:"stack,type:text"`
	Context    map[string]any `bun:"context,type:jsonb"`
	Resolved   bool           `bun:"resolved,notnull,default:false"`
	RetryCount int            `bun:"retry_count,notnull,default:0"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,default:current_timestamp"`
}
