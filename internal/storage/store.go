package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/logging"
	"scholardigest/internal/services"
)

// Store is the keyed record store used by every pipeline stage.
type Store struct {
	primary Table
	mirror  Table
	logger  *slog.Logger
}

// Open builds the CSV primary and SQLite mirror from configuration.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "config is nil", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "storage", "open", "ensure directories", err)
	}
	primary := NewCSVTable(cfg.RecordsCSVPath(), logger)
	mirror, err := OpenSQLite(ctx, cfg.RecordsDBPath(), logger)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "storage", "open", "sqlite mirror", err)
	}
	return New(primary, mirror, logger), nil
}

// New composes a store from a primary table and an optional mirror.
func New(primary, mirror Table, logger *slog.Logger) *Store {
	return &Store{
		primary: primary,
		mirror:  mirror,
		logger:  logging.NewComponentLogger(logger, "storage"),
	}
}

// AppendNew persists records whose content hash is not yet stored and returns
// the number inserted. Intra-batch duplicates keep their first occurrence.
func (s *Store) AppendNew(ctx context.Context, records []article.Record) (int, error) {
	batch := dedupeFirst(records)
	if len(batch) == 0 {
		return 0, nil
	}
	existing, err := s.primary.Load(ctx)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "storage", "append", "read existing records", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		known[rec.ContentHash] = struct{}{}
	}
	fresh := make([]article.Record, 0, len(batch))
	for _, rec := range batch {
		if _, ok := known[rec.ContentHash]; ok {
			continue
		}
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		s.logger.Debug("append skipped; all records already stored", logging.Int("received", len(records)))
		return 0, nil
	}

	inserted, err := s.primary.Append(ctx, fresh)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "storage", "append", "primary table", err)
	}
	if s.mirror != nil {
		mirrored, err := s.mirror.Append(ctx, fresh)
		if err != nil {
			return inserted, services.Wrap(services.ErrStorage, "storage", "append", "sqlite mirror", err)
		}
		if mirrored != inserted {
			s.logger.Debug("mirror insert count differs from primary",
				logging.Int("primary", inserted),
				logging.Int("mirror", mirrored),
			)
		}
	}
	s.logger.Info("records appended",
		logging.Int("received", len(records)),
		logging.Int("inserted", inserted),
	)
	return inserted, nil
}

// LoadAll returns every stored record. A primary that cannot be read is
// logged and treated as empty so the run can continue; writes still refuse
// to replace it.
func (s *Store) LoadAll(ctx context.Context) ([]article.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.primary.Load(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.WarnWithContext(s.logger, "record store unreadable; treating as empty", "store_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect or restore the CSV table; writes are refused until it parses"),
			logging.String(logging.FieldImpact, "stages see no stored records this run"),
		)
		return []article.Record{}, nil
	}
	if records == nil {
		records = []article.Record{}
	}
	return records, nil
}

// UpdateMany applies partial updates by key. Unknown keys and updates naming
// no field are counted as skipped.
func (s *Store) UpdateMany(ctx context.Context, updates []article.Update) (UpdateResult, error) {
	var result UpdateResult
	applicable := make([]article.Update, 0, len(updates))
	for _, update := range updates {
		if update.Key == "" || update.Fields.Empty() {
			result.Skipped++
			continue
		}
		applicable = append(applicable, update)
	}
	if len(applicable) == 0 {
		return result, nil
	}

	primary, err := s.primary.Update(ctx, applicable)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "storage", "update", "primary table", err)
	}
	result.Updated = primary.Updated
	result.Skipped += primary.Skipped
	if s.mirror != nil {
		if _, err := s.mirror.Update(ctx, applicable); err != nil {
			return result, services.Wrap(services.ErrStorage, "storage", "update", "sqlite mirror", err)
		}
	}
	if result.Skipped > 0 {
		s.logger.Info("updates skipped for unknown keys", logging.Int("skipped", result.Skipped))
	}
	return result, nil
}

// EnsureSchema rewrites a primary whose header lacks canonical columns so
// every optional field exists. The mirror repairs itself on open.
func (s *Store) EnsureSchema(ctx context.Context) error {
	repairer, ok := s.primary.(schemaRepairer)
	if !ok {
		return nil
	}
	if _, err := repairer.Repair(ctx); err != nil {
		if errors.Is(err, ErrCorruptStore) {
			logging.WarnWithContext(s.logger, "schema repair skipped; record store unreadable", "store_read_failed",
				logging.Error(err),
			)
			return nil
		}
		return services.Wrap(services.ErrStorage, "storage", "ensure schema", "", err)
	}
	return nil
}

// Sync copies every primary record into the mirror: missing rows are
// inserted, then optional fields are brought up to date.
func (s *Store) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if s.mirror == nil {
		return result, services.Wrap(services.ErrConfiguration, "storage", "sync", "no mirror configured", nil)
	}
	records, err := s.primary.Load(ctx)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "storage", "sync", "read primary", err)
	}
	result.Records = len(records)
	if len(records) == 0 {
		return result, nil
	}
	inserted, err := s.mirror.Append(ctx, records)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "storage", "sync", "insert into mirror", err)
	}
	result.Inserted = inserted

	updates := make([]article.Update, 0, len(records))
	for _, rec := range records {
		fields := article.Fields{
			Relevance:       rec.Relevance,
			RelevanceReason: rec.RelevanceReason,
			EnrichedText:    rec.EnrichedText,
		}
		if fields.Empty() {
			continue
		}
		updates = append(updates, article.Update{Key: rec.ContentHash, Fields: fields})
	}
	updated, err := s.mirror.Update(ctx, updates)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "storage", "sync", "update mirror", err)
	}
	result.Updated = updated.Updated
	s.logger.Info("mirror synchronized",
		logging.Int("records", result.Records),
		logging.Int("inserted", result.Inserted),
		logging.Int("updated", result.Updated),
	)
	return result, nil
}

// Close releases both tables.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close primary: %w", err))
		}
	}
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mirror: %w", err))
		}
	}
	return errors.Join(errs...)
}
