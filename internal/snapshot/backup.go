package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookable/internal/config"

	"github.com/rs/zerolog"
)

const backupPrefix = "snapshot_"

// BackupService periodically copies the snapshot store and prunes old copies.
type BackupService struct {
	store  *Store
	config config.BackupConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewBackupService(store *Store, cfg config.BackupConfig, logger zerolog.Logger) *BackupService {
	return &BackupService{
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "snapshot_backup").Logger(),
		now:    time.Now,
	}
}

// Start backs up immediately and then on every interval until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("snapshot backups disabled")
		return
	}
	interval := s.config.Interval()
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.logger.Info().Dur("interval", interval).Str("dir", s.config.StoragePath).Msg("snapshot backups started")

	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.Backup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("snapshot backup failed")
		return
	}
	if _, err := s.Cleanup(); err != nil {
		s.logger.Error().Err(err).Msg("snapshot backup cleanup failed")
	}
}

// Backup writes a consistent copy of the store and returns its path.
func (s *BackupService) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s%s.db", backupPrefix, s.now().UTC().Format("20060102_150405"))
	path := filepath.Join(s.config.StoragePath, name)

	// VACUUM INTO reads through SQLite, so pages still in the WAL are included.
	if _, err := s.store.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("snapshot backup written")
	return path, nil
}

// Cleanup removes backups older than the retention window and reports how many went.
func (s *BackupService) Cleanup() (int, error) {
	if s.config.RetentionDays <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, e.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("remove old backup")
			continue
		}
		s.logger.Info().Str("file", e.Name()).Msg("old backup removed")
		removed++
	}
	return removed, nil
}
