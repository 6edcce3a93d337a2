package main

import (
	"flag"
	"log"

	"github.com/ustahub/chatsync/pkg/config"
	"github.com/ustahub/chatsync/pkg/migrations/chatdb"
	"github.com/ustahub/chatsync/pkg/pgutil"
	mghelper "github.com/ustahub/chatsync/pkg/pgutil/migrations"

	"github.com/uptrace/bun/migrate"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	// Connect to chat database
	db, err := pgutil.ConnectDB(&cfg.ChatDatabase)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for chat database (%s)...\n", cfg.ChatDatabase.Database)

	// Create migrator
	migrator := migrate.NewMigrator(db, chatdb.Migrations)

	// Run migrations with args
	err = mghelper.RunMigrations(migrator, flag.Args()...)
	if err != nil {
		mghelper.Exitf(err.Error())
	}
}
