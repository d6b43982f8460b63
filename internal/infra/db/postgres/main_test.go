//go:build integration

package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

var testPool *pgxpool.Pool

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root containing go.mod")
}

// startContainer runs a throwaway postgres and returns its DSN and id.
func startContainer() (dsn, containerID string) {
	const (
		dbName     = "activation-test"
		dbUser     = "user"
		dbPassword = "password"
		dbPort     = "5432"
	)
	cmd := exec.Command("docker", "run", "-d", "--rm",
		"--network", "host",
		"-e", "POSTGRES_DB="+dbName,
		"-e", "POSTGRES_USER="+dbUser,
		"-e", "POSTGRES_PASSWORD="+dbPassword,
		"postgres:16",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		log.Fatalf("could not start postgres container: %v. Is Docker running?", err)
	}
	id := strings.TrimSpace(out.String())
	if len(id) > 12 {
		id = id[:12]
	}
	return fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable", dbUser, dbPassword, dbPort, dbName), id
}

// TestMain uses TEST_DATABASE_URL when set, otherwise a docker container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	var containerID string
	if dsn == "" {
		dsn, containerID = startContainer()
	}
	stop := func() {
		if containerID == "" {
			return
		}
		if err := exec.Command("docker", "stop", containerID).Run(); err != nil {
			log.Printf("could not stop postgres container %s: %v", containerID, err)
		}
	}

	var err error
	const maxRetries = 15
	for i := 0; i < maxRetries; i++ {
		testPool, err = pgxpool.Connect(ctx, dsn)
		if err == nil {
			if err = testPool.Ping(ctx); err == nil {
				break
			}
			testPool.Close()
		}
		log.Printf("Waiting for database to be ready... (attempt %d/%d)", i+1, maxRetries)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		stop()
		log.Fatalf("Unable to connect to test database after multiple retries: %v", err)
	}

	root, err := findProjectRoot()
	if err != nil {
		stop()
		log.Fatalf("Error finding project root: %v", err)
	}
	schema, err := os.ReadFile(filepath.Join(root, "deploy", "postgres", "init.sql"))
	if err != nil {
		stop()
		log.Fatalf("could not read init.sql: %v", err)
	}
	if _, err := testPool.Exec(ctx, string(schema)); err != nil {
		stop()
		log.Fatalf("could not apply schema: %v", err)
	}

	exitCode := m.Run()

	testPool.Close()
	stop()
	os.Exit(exitCode)
}

func cleanup(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE activations`); err != nil {
		t.Fatalf("Failed to clean up database: %v", err)
	}
}
