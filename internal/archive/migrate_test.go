package archive

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationPattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_explanations.sql", true, "0001", "create_explanations"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if (m != nil) != tt.valid {
				t.Fatalf("match = %v, want %v", m != nil, tt.valid)
			}
			if tt.valid && (m[1] != tt.version || m[2] != tt.name) {
				t.Errorf("got version %q name %q, want %q %q", m[1], m[2], tt.version, tt.name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("CREATE VIEW `{{PROJECT_ID}}.{{DATASET_ID}}.v` AS SELECT 1")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64)")},
		"README.md":       {Data: []byte("not a migration")},
	}

	migrations, err := ReadMigrations(fsys, "proj", "ds")
	if err != nil {
		t.Fatalf("ReadMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations not sorted by version: %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.ds.t`") {
		t.Errorf("placeholders not substituted: %s", migrations[0].SQL)
	}

	// The checksum ignores the target dataset.
	other, err := ReadMigrations(fsys, "proj", "other")
	if err != nil {
		t.Fatalf("ReadMigrations failed: %v", err)
	}
	if other[0].Checksum != migrations[0].Checksum {
		t.Error("checksum should not depend on the dataset")
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"0001_b.sql": {Data: []byte("SELECT 2")},
	}
	if _, err := ReadMigrations(fsys, "p", "d"); err == nil {
		t.Fatal("expected an error for duplicate versions")
	}
}

func TestBigQueryMigrations_Embedded(t *testing.T) {
	migrations, err := BigQueryMigrations("proj", "refund_explainer")
	if err != nil {
		t.Fatalf("BigQueryMigrations failed: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Name != "create_explanations" {
		t.Fatalf("expected create_explanations first, got %+v", migrations)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.refund_explainer.explanations`") {
		t.Errorf("explanations table not targeted: %s", migrations[0].SQL)
	}
	for _, m := range migrations {
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s has unsubstituted placeholders", m.Filename)
		}
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := Pending(all, []AppliedMigration{{Version: 1}, {Version: 3}})
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("expected only version 2 pending, got %+v", pending)
	}
	if got := Pending(all, nil); len(got) != 3 {
		t.Errorf("expected all pending with nothing applied, got %d", len(got))
	}
}
