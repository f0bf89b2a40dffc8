package store

import (
	"context"
	"os"
	"testing"

	"github.com/batchforge/batchengine/batch"
	_ "github.com/go-sql-driver/mysql"
)

func getTestDSN(t *testing.T) string {
	dsn := os.Getenv("BATCHENGINE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Logf("MySQL tests skipped: set BATCHENGINE_TEST_MYSQL_DSN to run")
	}
	return dsn
}

func TestMySQLRepository_NewConnection(t *testing.T) {
	dsn := getTestDSN(t)
	if dsn == "" {
		t.Skip("Skipping MySQL tests: BATCHENGINE_TEST_MYSQL_DSN not set")
	}

	repo, err := NewMySQLRepository(dsn)
	if err != nil {
		t.Fatalf("NewMySQLRepository failed: %v", err)
	}
	defer func() { _ = repo.Close() }()

	var _ batch.Repository = repo

	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestMySQLRepository_Contract(t *testing.T) {
	dsn := getTestDSN(t)
	if dsn == "" {
		t.Skip("Skipping MySQL tests: BATCHENGINE_TEST_MYSQL_DSN not set")
	}

	testRepositoryContract(t, func() batch.Repository {
		repo, err := NewMySQLRepository(dsn)
		if err != nil {
			t.Fatalf("NewMySQLRepository failed: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestMySQLRepository_Close(t *testing.T) {
	dsn := getTestDSN(t)
	if dsn == "" {
		t.Skip("Skipping MySQL tests: BATCHENGINE_TEST_MYSQL_DSN not set")
	}

	repo, err := NewMySQLRepository(dsn)
	if err != nil {
		t.Fatalf("NewMySQLRepository failed: %v", err)
	}

	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}
