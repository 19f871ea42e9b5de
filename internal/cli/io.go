package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/gcs"
	"github.com/spf13/cobra"
)

const stdioPath = "-"

// readInput loads path from stdin, a gs:// URI or the local filesystem.
func readInput(ctx context.Context, cmd *cobra.Command, store gcs.ObjectStore, path string) ([]byte, error) {
	switch {
	case path == stdioPath:
		return io.ReadAll(cmd.InOrStdin())
	case gcs.IsURI(path):
		return store.Fetch(ctx, path)
	default:
		return os.ReadFile(path)
	}
}

// decodeInput reads path and decodes it as JSON, keeping numbers exact.
func decodeInput(ctx context.Context, cmd *cobra.Command, store gcs.ObjectStore, path string, dst any) error {
	data, err := readInput(ctx, cmd, store, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// loadRecord reads one tax record, qualifying field errors with label.
func loadRecord(ctx context.Context, cmd *cobra.Command, store gcs.ObjectStore, label, path string) (domain.TaxRecord, error) {
	if path == "" {
		return domain.TaxRecord{}, fmt.Errorf("--%s is required", label)
	}
	var raw map[string]any
	if err := decodeInput(ctx, cmd, store, path, &raw); err != nil {
		return domain.TaxRecord{}, err
	}
	return recordFromMap(label, raw)
}

func recordFromMap(label string, raw map[string]any) (domain.TaxRecord, error) {
	rec, err := domain.RecordFromMap(raw)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return domain.TaxRecord{}, verr.Prefix(label)
		}
		return domain.TaxRecord{}, err
	}
	return rec, nil
}

// writeOutput sends data to stdout, a gs:// URI or a local file.
func writeOutput(ctx context.Context, cmd *cobra.Command, store gcs.ObjectStore, path string, data []byte) error {
	switch {
	case path == "" || path == stdioPath:
		_, err := cmd.OutOrStdout().Write(data)
		return err
	case gcs.IsURI(path):
		return store.Upload(ctx, path, data, "application/json")
	default:
		return os.WriteFile(path, data, 0o644)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
