// Command seed provisions activation records into the configured store.
//
//	seed -config config.yaml -code ABCD-1234 -name "Jane" -email jane@example.com -till 2027-01-01
//	seed -config config.yaml -file records.yaml
//	seed -config config.yaml -mint-admin-token ops@example.com -token-ttl 24h
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"activation-service/internal/config"
	"activation-service/internal/domain"
	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
	"activation-service/internal/infra/api"
	"activation-service/internal/infra/db"

	"gopkg.in/yaml.v3"
)

type seedRecord struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	ActiveTill string `yaml:"activeTill"`
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	file := flag.String("file", "", "YAML list of {code, name, email, activeTill}")
	code := flag.String("code", "", "single code to create")
	name := flag.String("name", "", "holder name for -code")
	email := flag.String("email", "", "holder email for -code")
	till := flag.String("till", "", "last valid day for -code (YYYY-MM-DD)")
	mintFor := flag.String("mint-admin-token", "", "print an admin bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "lifetime of the token from -mint-admin-token")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *mintFor != "" {
		tok, err := mintAdminToken(cfg.Admin.JWTSecret, *mintFor, *tokenTTL)
		if err != nil {
			log.Fatalf("mint admin token: %v", err)
		}
		fmt.Println(tok)
		return
	}
	if cfg.Store.Driver == config.DriverMemory {
		log.Fatalf("store.driver=memory has nothing to seed; use postgres or mongo")
	}

	var recs []seedRecord
	switch {
	case *file != "":
		b, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read %s: %v", *file, err)
		}
		if err := yaml.Unmarshal(b, &recs); err != nil {
			log.Fatalf("parse %s: %v", *file, err)
		}
	case *code != "":
		recs = []seedRecord{{Code: *code, Name: *name, Email: *email, ActiveTill: *till}}
	default:
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close(context.Background())

	created, skipped, err := seed(ctx, store.Records, recs)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("Seeding complete: %d created, %d already present.\n", created, skipped)
}

// seed creates every record; codes that already exist are skipped, not updated.
func seed(ctx context.Context, repo repository.ActivationRepository, recs []seedRecord) (created, skipped int, err error) {
	for _, s := range recs {
		d, err := model.ParseDate(s.ActiveTill)
		if err != nil {
			return created, skipped, fmt.Errorf("code %q: %w", s.Code, err)
		}
		rec, err := model.NewActivationRecord(s.Code, s.Name, s.Email, d)
		if err != nil {
			return created, skipped, fmt.Errorf("code %q: %w", s.Code, err)
		}
		switch err := repo.Create(ctx, repository.NoTX, rec); {
		case err == nil:
			created++
			fmt.Printf("seeded: %s (till=%s)\n", rec.Code, rec.ActiveTill)
		case errors.Is(err, domain.ErrAlreadyExists):
			skipped++
			fmt.Printf("exists: %s\n", rec.Code)
		default:
			return created, skipped, fmt.Errorf("create %q: %w", rec.Code, err)
		}
	}
	return created, skipped, nil
}

// mintAdminToken signs a token accepted by the deactivate and update-expiry routes.
func mintAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("admin.jwt_secret (or ADMIN_JWT_SECRET) is not set")
	}
	return api.NewAuthManager(secret, ttl).Mint(subject)
}
