package archive

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/bigquery/*.sql
var bigqueryMigrations embed.FS

// Migration files are named 0001_name.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single versioned schema change for the BigQuery archive.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// BigQueryMigrations returns the embedded migrations rendered for a dataset.
func BigQueryMigrations(projectID, datasetID string) ([]Migration, error) {
	sub, err := fs.Sub(bigqueryMigrations, "migrations/bigquery")
	if err != nil {
		return nil, err
	}
	return ReadMigrations(sub, projectID, datasetID)
}

// ReadMigrations loads every migration file in the root of fsys, sorted by
// version. {{PROJECT_ID}} and {{DATASET_ID}} are substituted. Checksums are
// taken before substitution so they identify the change, not its target.
func ReadMigrations(fsys fs.FS, projectID, datasetID string) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the migrations whose version has not been applied.
func Pending(all []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}
	var out []Migration
	for _, m := range all {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// Migrator applies migrations to a BigQuery dataset and records them in
// schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

// NewMigrator connects to BigQuery for projectID.
func NewMigrator(ctx context.Context, projectID, datasetID, appliedBy string, log zerolog.Logger) (*Migrator, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewMigrator: creating client: %w", err)
	}
	return &Migrator{client: client, projectID: projectID, datasetID: datasetID, appliedBy: appliedBy, log: log}, nil
}

// Close closes the BigQuery client connection.
func (m *Migrator) Close() error {
	return m.client.Close()
}

// Run applies every pending migration in order and returns how many ran.
func (m *Migrator) Run(ctx context.Context, migrations []Migration) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Info().Int("found", len(migrations)).Int("applied", len(applied)).Msg("Loaded migrations")

	count := 0
	for _, mig := range Pending(migrations, applied) {
		log := m.log.With().Int("version", mig.Version).Str("name", mig.Name).Logger()
		log.Info().Msg("Applying migration")

		if err := m.exec(ctx, mig.SQL, nil); err != nil {
			return count, fmt.Errorf("execute migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return count, fmt.Errorf("record migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

func (m *Migrator) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", m.projectID, m.datasetID, name)
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	return m.exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+m.table("schema_migrations")+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, nil)
}

func (m *Migrator) applied(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table("schema_migrations") + `
		ORDER BY version ASC
	`)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *Migrator) record(ctx context.Context, mig Migration) error {
	return m.exec(ctx, `
		INSERT INTO `+m.table("schema_migrations")+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	})
}

func (m *Migrator) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	return status.Err()
}
