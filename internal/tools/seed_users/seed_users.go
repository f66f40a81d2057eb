package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/castlelight/gambit/internal/dbconfig"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User mirrors the users.json layout.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	EloRating int       `json:"elo_rating"`
}

func main() {
	ctx := context.Background()

	path := "internal/assets/users.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load users.json
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal users: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed users
	total, inserted, skipped, errs := len(users), 0, 0, 0
	for _, u := range users {
		tag, err := pool.Exec(ctx, `
            INSERT INTO users (
              id, username, email, elo_rating
            ) VALUES ($1,$2,$3,$4)
            ON CONFLICT (username) DO NOTHING
        `, u.ID, u.Username, u.Email, u.EloRating)
		if err != nil {
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Users seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}
