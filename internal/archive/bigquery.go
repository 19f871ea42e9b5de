package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

const explanationsTable = "explanations"

// ExplanationRow is the BigQuery shape of an Entry. Money is stored as
// decimal strings so no precision is lost.
type ExplanationRow struct {
	ExplanationID  string    `bigquery:"explanation_id"` // REQUIRED
	CreatedTS      time.Time `bigquery:"created_ts"`     // REQUIRED
	Source         string    `bigquery:"source"`         // REQUIRED
	PriorYear      int64     `bigquery:"prior_year"`
	CurrentYear    int64     `bigquery:"current_year"`
	PriorBalance   string    `bigquery:"prior_balance"`
	CurrentBalance string    `bigquery:"current_balance"`
	TotalChange    string    `bigquery:"total_change"`
	Direction      string    `bigquery:"direction"`
	DriverCount    int64     `bigquery:"driver_count"`

	Drivers   bigquery.NullJSON   `bigquery:"drivers"`   // JSON, NULLABLE
	Narrative bigquery.NullString `bigquery:"narrative"` // NULLABLE
}

// BigQueryRecorder streams explanation runs into a BigQuery table. It holds a
// shared client to avoid a new connection per run.
type BigQueryRecorder struct {
	client  *bigquery.Client
	dataset string
}

// NewBigQueryRecorder connects to BigQuery for projectID.
func NewBigQueryRecorder(ctx context.Context, projectID, datasetID string) (*BigQueryRecorder, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRecorder: creating client: %w", err)
	}
	return &BigQueryRecorder{client: client, dataset: datasetID}, nil
}

func (r *BigQueryRecorder) Record(ctx context.Context, e *Entry) error {
	row := toRow(e)
	inserter := r.client.Dataset(r.dataset).Table(explanationsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("Record: inserting explanation %s: %w", e.ID, err)
	}
	return nil
}

func (r *BigQueryRecorder) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		ORDER BY created_ts DESC, explanation_id
		LIMIT @limit
	`, r.dataset, explanationsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: NormalizeLimit(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: running query: %w", err)
	}

	entries := []Entry{}
	for {
		var row ExplanationRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecent: reading row: %w", err)
		}
		e, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("ListRecent: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *BigQueryRecorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	q := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE created_ts < @cutoff
	`, r.dataset, explanationsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "cutoff", Value: cutoff},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("Prune: running delete query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("Prune: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("Prune: job error: %w", err)
	}

	var affected int64
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		affected = stats.NumDMLAffectedRows
	}
	return affected, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRecorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func toRow(e *Entry) *ExplanationRow {
	row := &ExplanationRow{
		ExplanationID:  e.ID,
		CreatedTS:      e.CreatedAt,
		Source:         e.Source,
		PriorYear:      int64(e.PriorYear),
		CurrentYear:    int64(e.CurrentYear),
		PriorBalance:   e.PriorBalance.String(),
		CurrentBalance: e.CurrentBalance.String(),
		TotalChange:    e.TotalChange.String(),
		Direction:      string(e.Direction),
		DriverCount:    int64(e.DriverCount),
	}
	if len(e.Drivers) > 0 {
		row.Drivers = bigquery.NullJSON{JSONVal: string(e.Drivers), Valid: true}
	}
	if e.Narrative != nil {
		row.Narrative = bigquery.NullString{StringVal: *e.Narrative, Valid: true}
	}
	return row
}

func fromRow(row ExplanationRow) (Entry, error) {
	e := Entry{
		ID:          row.ExplanationID,
		CreatedAt:   row.CreatedTS.UTC(),
		Source:      row.Source,
		PriorYear:   int(row.PriorYear),
		CurrentYear: int(row.CurrentYear),
		Direction:   domain.Direction(row.Direction),
		DriverCount: int(row.DriverCount),
		Drivers:     json.RawMessage("[]"),
	}

	var err error
	if e.PriorBalance, err = decimal.NewFromString(row.PriorBalance); err != nil {
		return Entry{}, fmt.Errorf("parse prior_balance of %s: %w", row.ExplanationID, err)
	}
	if e.CurrentBalance, err = decimal.NewFromString(row.CurrentBalance); err != nil {
		return Entry{}, fmt.Errorf("parse current_balance of %s: %w", row.ExplanationID, err)
	}
	if e.TotalChange, err = decimal.NewFromString(row.TotalChange); err != nil {
		return Entry{}, fmt.Errorf("parse total_change of %s: %w", row.ExplanationID, err)
	}
	if row.Drivers.Valid {
		e.Drivers = json.RawMessage(row.Drivers.JSONVal)
	}
	if row.Narrative.Valid {
		s := row.Narrative.StringVal
		e.Narrative = &s
	}
	return e, nil
}
