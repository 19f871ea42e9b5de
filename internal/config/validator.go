package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config key, e.g. "jobs.workers"
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"trace", "debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"console", "json"}
}

// ValidArchiveDrivers returns the list of valid archive drivers
func ValidArchiveDrivers() []string {
	return []string{ArchiveNone, ArchiveSQLite, ArchiveBigQuery}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLog()...)
	errors = append(errors, c.validateNarrative()...)
	errors = append(errors, c.validateArchive()...)
	errors = append(errors, c.validateRateLimit()...)
	errors = append(errors, c.validateJobs()...)

	if c.Calculator.CacheTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "calculator.cache_ttl",
			Value:   c.Calculator.CacheTTL,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be a port number between 1 and 65535",
		})
	}

	timeouts := []struct {
		field string
		value any
		ok    bool
	}{
		{"server.read_timeout", c.Server.ReadTimeout, c.Server.ReadTimeout > 0},
		{"server.write_timeout", c.Server.WriteTimeout, c.Server.WriteTimeout > 0},
		{"server.idle_timeout", c.Server.IdleTimeout, c.Server.IdleTimeout > 0},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout, c.Server.ShutdownTimeout > 0},
	}
	for _, tt := range timeouts {
		if !tt.ok {
			errors = append(errors, ValidationError{
				Field:   tt.field,
				Value:   tt.value,
				Message: "must be positive",
			})
		}
	}

	return errors
}

func (c *Config) validateLog() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Log.Format)) {
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Value:   c.Log.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateNarrative() []ValidationError {
	var errors []ValidationError

	if !c.Narrative.Enabled {
		return nil
	}
	if c.Narrative.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "narrative.model",
			Value:   c.Narrative.Model,
			Message: "is required when narrative.enabled is true",
		})
	}
	if c.Narrative.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "narrative.timeout",
			Value:   c.Narrative.Timeout,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateArchive() []ValidationError {
	var errors []ValidationError

	switch c.Archive.Driver {
	case ArchiveNone:
		return nil
	case ArchiveSQLite:
		if c.Archive.SQLitePath == "" {
			errors = append(errors, ValidationError{
				Field:   "archive.sqlite_path",
				Value:   c.Archive.SQLitePath,
				Message: "is required for the sqlite archive",
			})
		}
		if c.Archive.Retention > 0 {
			parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
			if _, err := parser.Parse(c.Archive.PruneSchedule); err != nil {
				errors = append(errors, ValidationError{
					Field:   "archive.prune_schedule",
					Value:   c.Archive.PruneSchedule,
					Message: fmt.Sprintf("is not a valid cron expression: %v", err),
				})
			}
		}
	case ArchiveBigQuery:
		if c.Archive.BigQueryProject == "" {
			errors = append(errors, ValidationError{
				Field:   "archive.bigquery_project",
				Value:   c.Archive.BigQueryProject,
				Message: "is required for the bigquery archive",
			})
		}
		if c.Archive.BigQueryDataset == "" {
			errors = append(errors, ValidationError{
				Field:   "archive.bigquery_dataset",
				Value:   c.Archive.BigQueryDataset,
				Message: "is required for the bigquery archive",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "archive.driver",
			Value:   c.Archive.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidArchiveDrivers(), ", ")),
		})
	}

	if c.Archive.Retention < 0 {
		errors = append(errors, ValidationError{
			Field:   "archive.retention",
			Value:   c.Archive.Retention,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateRateLimit() []ValidationError {
	var errors []ValidationError

	if c.RateLimit.RPS < 0 {
		errors = append(errors, ValidationError{
			Field:   "ratelimit.rps",
			Value:   c.RateLimit.RPS,
			Message: "must be non-negative",
		})
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "ratelimit.burst",
			Value:   c.RateLimit.Burst,
			Message: "must be at least 1 when rate limiting is enabled",
		})
	}

	return errors
}

func (c *Config) validateJobs() []ValidationError {
	var errors []ValidationError

	positive := []struct {
		field string
		value int
	}{
		{"jobs.buffer_size", c.Jobs.BufferSize},
		{"jobs.workers", c.Jobs.Workers},
		{"jobs.concurrency", c.Jobs.Concurrency},
		{"jobs.max_pairs", c.Jobs.MaxPairs},
	}
	for _, p := range positive {
		if p.value < 1 {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must be at least 1",
			})
		}
	}
	if c.Jobs.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs.max_retries",
			Value:   c.Jobs.MaxRetries,
			Message: "must be non-negative",
		})
	}

	return errors
}
