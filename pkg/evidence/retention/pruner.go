// Package retention enforces age and count limits on stored turn evidence.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"atlas-g/protocol/pkg/evidence"
	"atlas-g/protocol/pkg/evidence/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain evidence.
	// 0 means keep evidence forever.
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// ArchiveBeforeDelete writes pruned records to ArchivePath as JSON.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory to store archived evidence.
	ArchivePath string

	// MaxRecords is the maximum number of records to keep.
	// 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Pruner enforces retention policies on turn records.
type Pruner struct {
	storage   evidence.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(storage evidence.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "evidence.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var totalDeleted int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return totalDeleted, err
		}
		totalDeleted += deleted
		p.logger.Info("pruned records by age",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return totalDeleted, err
		}
		totalDeleted += deleted
		p.logger.Info("pruned records by count",
			"deleted_count", deleted,
			"max_records", p.config.MaxRecords,
		)
	}

	if totalDeleted > 0 {
		p.logger.Info("evidence pruning completed", "total_deleted", totalDeleted)
	}
	return totalDeleted, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	query := &evidence.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		records, err := p.storage.Query(ctx, &evidence.Query{EndTime: &cutoff, SortOrder: "asc"})
		if err != nil {
			return 0, evidence.NewRetentionError("age", err)
		}
		if err := p.archive(ctx, "age", records); err != nil {
			return 0, evidence.NewRetentionError("age", err)
		}
	}

	deleted, err := p.storage.Delete(ctx, query)
	if err != nil {
		return 0, evidence.NewRetentionError("age", err)
	}
	return deleted, nil
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &evidence.Query{})
	if err != nil {
		return 0, evidence.NewRetentionError("count", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	excess := count - p.config.MaxRecords
	p.logger.Info("record count exceeds limit, pruning oldest",
		"current_count", count,
		"max_records", p.config.MaxRecords,
		"to_delete", excess,
	)

	oldest, err := p.storage.Query(ctx, &evidence.Query{SortOrder: "asc", Limit: int(excess)})
	if err != nil {
		return 0, evidence.NewRetentionError("count", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, "count", oldest); err != nil {
			return 0, evidence.NewRetentionError("count", err)
		}
	}

	ids := make([]string, len(oldest))
	for i, r := range oldest {
		ids[i] = r.ID
	}
	deleted, err := p.storage.Delete(ctx, &evidence.Query{IDs: ids})
	if err != nil {
		return 0, evidence.NewRetentionError("count", err)
	}
	return deleted, nil
}

func (p *Pruner) archive(ctx context.Context, phase string, records []*evidence.TurnRecord) error {
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("evidence-%s-%s.json", phase, p.now().UTC().Format("2006-01-02-150405"))
	archiveFile := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to export records to archive: %w", err)
	}

	p.logger.Info("evidence archived",
		"archive_file", archiveFile,
		"record_count", len(records),
	)
	return nil
}

// Start starts the pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
