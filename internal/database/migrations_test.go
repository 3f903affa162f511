package database

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestReadMigrationsSortsAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"002_forum.up.sql":            {Data: []byte("CREATE TABLE forum_questions (id SERIAL);")},
		"001_initial_schema.up.sql":   {Data: []byte("CREATE TABLE users (id SERIAL);")},
		"001_initial_schema.down.sql": {Data: []byte("DROP TABLE users;")},
		"README.md":                   {Data: []byte("docs")},
		"abc_bad.up.sql":              {Data: []byte("SELECT 1;")},
	}

	migrations, err := ReadMigrations(fsys)
	if err != nil {
		t.Fatalf("ReadMigrations returned error: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[1].Version != "002" {
		t.Errorf("unexpected order: %s, %s", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Title != "initial schema" {
		t.Errorf("unexpected title %q", migrations[0].Title)
	}
	if migrations[0].Checksum != calculateChecksum("CREATE TABLE users (id SERIAL);") {
		t.Error("checksum does not match file content")
	}
}

func TestReadMigrationsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"003_alerts.up.sql":     {Data: []byte("SELECT 1;")},
		"003_alerts_two.up.sql": {Data: []byte("SELECT 2;")},
	}

	if _, err := ReadMigrations(fsys); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestVerifyChecksums(t *testing.T) {
	migrations := []Migration{
		{Version: "001", Title: "initial schema", Checksum: "aaa"},
		{Version: "002", Title: "forum", Checksum: "bbb"},
	}

	if err := verifyChecksums(migrations, map[string]string{"001": "aaa"}); err != nil {
		t.Errorf("expected no error for matching checksums, got %v", err)
	}

	err := verifyChecksums(migrations, map[string]string{"001": "aaa", "002": "changed"})
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if !strings.Contains(err.Error(), "002") {
		t.Errorf("expected error to name migration 002, got %v", err)
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		file    string
		version string
		name    string
		ok      bool
	}{
		{"001_initial_schema.up.sql", "001", "initial_schema", true},
		{"010_alerts.up.sql", "010", "alerts", true},
		{"initial.up.sql", "", "", false},
		{"v1_x.up.sql", "", "", false},
	}

	for _, tt := range tests {
		version, name, ok := parseMigrationName(tt.file)
		if version != tt.version || name != tt.name || ok != tt.ok {
			t.Errorf("parseMigrationName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.file, version, name, ok, tt.version, tt.name, tt.ok)
		}
	}
}
