package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/jobs"
	"github.com/spf13/cobra"
)

// batchFile is the input format of refundctl batch, the same shape the
// batch endpoint accepts.
type batchFile struct {
	Pairs []struct {
		Label       string         `json:"label"`
		PriorData   map[string]any `json:"prior_data"`
		CurrentData map[string]any `json:"current_data"`
	} `json:"pairs"`
}

type batchOutput struct {
	GeneratedAt time.Time         `json:"generated_at"`
	PairCount   int               `json:"pair_count"`
	Failed      int               `json:"failed"`
	Results     []jobs.PairResult `json:"results"`
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	var (
		inputPath   string
		outputPath  string
		concurrency int
		noArchive   bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Explain many record pairs and write the results as JSON",
		Example: `  refundctl batch --input pairs.json --output results.json
  refundctl batch --input gs://returns/pairs.json --output gs://returns/results.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required")
			}

			s, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := contextOf(cmd)

			var in batchFile
			if err := decodeInput(ctx, cmd, s.app.Storage, inputPath, &in); err != nil {
				return err
			}
			if len(in.Pairs) == 0 {
				return errors.New("input has no pairs")
			}

			pairs := make([]jobs.ExplainPair, len(in.Pairs))
			var verr domain.ValidationError
			for i, p := range in.Pairs {
				prefix := fmt.Sprintf("pairs[%d]", i)
				prior, err := recordFromMap(prefix+".prior_data", p.PriorData)
				collectValidation(&verr, err)
				current, err := recordFromMap(prefix+".current_data", p.CurrentData)
				collectValidation(&verr, err)
				pairs[i] = jobs.ExplainPair{Label: p.Label, Prior: prior, Current: current}
			}
			if err := verr.OrNil(); err != nil {
				return err
			}

			if concurrency <= 0 {
				concurrency = s.cfg.Jobs.Concurrency
			}
			var recorder archive.Recorder = s.app.Recorder
			if noArchive {
				recorder = archive.NewNoopRecorder()
			}

			start := time.Now()
			results := jobs.NewBatchProcessor(s.app.Engine, recorder, concurrency).Run(ctx, pairs, archive.SourceBatch)

			out := batchOutput{GeneratedAt: time.Now().UTC(), PairCount: len(results), Results: results}
			for _, r := range results {
				if r.Error != "" {
					out.Failed++
				}
			}

			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("encode results: %w", err)
			}
			data = append(data, '\n')
			if err := writeOutput(ctx, cmd, s.app.Storage, outputPath, data); err != nil {
				return fmt.Errorf("write %s: %w", outputPath, err)
			}

			s.log.Info().
				Int("pairs", out.PairCount).
				Int("failed", out.Failed).
				Str("output", outputPath).
				Str("size", humanize.Bytes(uint64(len(data)))).
				Dur("elapsed", time.Since(start)).
				Msg("Batch complete")

			if out.Failed == out.PairCount {
				return fmt.Errorf("all %d pairs failed", out.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", `pairs file (file, gs:// URI or -)`)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "results destination (file or gs:// URI, default stdout)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "pairs explained at once (default jobs.concurrency)")
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not record the runs in the archive")
	return cmd
}

func collectValidation(into *domain.ValidationError, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		into.Fields = append(into.Fields, verr.Fields...)
	}
}
