// Package chatdb holds all the migrations for the chat database
package chatdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the chat database
var Migrations = migrate.NewMigrations()
