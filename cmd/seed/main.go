// seed inserts development users for local testing. Run via go run ./cmd/seed.
// Idempotent: users that already exist are skipped.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/config"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/security"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
	userrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/repository"
)

const devPassword = "password123"

var devUsers = []domain.User{
	{ID: "dev-user-001", Email: "dev@example.com", Name: "Dev User", Role: domain.RoleAdmin},
	{ID: "dev-user-002", Email: "member@example.com", Name: "Member User", Role: domain.RoleUser},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewSQLRepository(conn, db.StatementBuilder(cfg.DatabaseDriver))
	ctx := context.Background()

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	for _, u := range devUsers {
		existing, err := users.GetByEmail(ctx, u.Email)
		if err != nil {
			log.Fatalf("seed check %s: %v", u.Email, err)
		}
		if existing != nil {
			log.Printf("%s already exists. Skipping.", u.Email)
			continue
		}
		u.PasswordHash = passwordHash
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := users.Create(ctx, &u); err != nil {
			log.Fatalf("create %s: %v", u.Email, err)
		}
		fmt.Printf("Dev login: %s / %s\n", u.Email, devPassword)
	}
	log.Println("Seed completed successfully.")
}
