//go:build ignore

// seed-users.go - Seed the source users table with sample marketplace users
// for local development.
//
// Usage:
//   go run scripts/seed-users.go -config config.yaml -count 50
//
// Roughly a third of the generated users are service providers, the rest
// customers; a few rows are left without phone or email to exercise the
// placeholder paths.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ustahub/chatsync/pkg/config"
	"github.com/ustahub/chatsync/pkg/pgutil"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	count := flag.Int("count", 50, "Number of users to seed")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.SourceDatabase)
	if err != nil {
		log.Fatalf("error connecting to source database: %s", err.Error())
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	firstNames := []string{"Mehmet", "Ayşe", "Fatma", "Ali", "Emine", "Mustafa", "Zeynep", "Hasan"}
	lastNames := []string{"Yılmaz", "Kaya", "Demir", "Çelik", "Şahin", "Öztürk", "Aydın", "Arslan"}

	inserted := 0
	for i := 0; i < *count; i++ {
		id := uuid.NewString()
		first := firstNames[i%len(firstNames)]
		last := lastNames[(i/len(firstNames))%len(lastNames)]

		role := "customer"
		if i%3 == 0 {
			role = "service_provider"
		}

		var phone, email any
		if i%7 != 0 {
			phone = fmt.Sprintf("+90 555 %03d %02d %02d", i%1000, i%100, (i*13)%100)
		}
		if i%5 != 0 {
			email = fmt.Sprintf("%s.%s.%d@example.com", first, last, i)
		}

		_, err := db.ExecContext(ctx, `
INSERT INTO users (id, first_name, last_name, phone, email, email_verified, role, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 'active', ?, ?)
ON CONFLICT (id) DO NOTHING`,
			id, first, last, phone, email, i%5 != 0, role, now, now)
		if err != nil {
			log.Fatalf("error inserting user %d: %s", i, err.Error())
		}
		inserted++
	}

	log.Printf("seeded %d users into %s", inserted, cfg.SourceDatabase.Database)
}
