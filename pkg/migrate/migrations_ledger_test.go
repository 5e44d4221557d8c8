package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptforge/promptforge-backend/pkg/migrate"
)

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_ledger_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no ledger migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE user_credits",
		"CHECK (available >= 0)",
		"CHECK (total_earned >= 0)",
		"CREATE TABLE payment_events",
		"CONSTRAINT ux_payment_events_provider_event_id UNIQUE (provider_event_id)",
		"CREATE TABLE credit_purchases",
		"CHECK (credit_amount > 0)",
		"DROP TABLE IF EXISTS payment_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir invalid: %v", err)
	}
}
