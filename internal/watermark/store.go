package watermark

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"scholardigest/internal/article"
	"scholardigest/internal/fileutil"
	"scholardigest/internal/logging"
	"scholardigest/internal/services"
)

// Store reads and writes the watermark file.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a store backed by path.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logging.NewComponentLogger(logger, "watermark")}
}

// Path returns the watermark file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the stored watermark, or nil when none has been set or the
// file content cannot be parsed.
func (s *Store) Get() (*time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStorage, "watermark", "read", s.path, err)
	}
	ts, err := article.ParseEpoch(string(data))
	if err != nil {
		logging.WarnWithContext(s.logger, "watermark unparsable; ignoring", "watermark_unparsable",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "next fetch is unbounded"),
			logging.String(logging.FieldErrorHint, "run 'scholardigest update-ts' to reset it"),
		)
		return nil, nil
	}
	return &ts, nil
}

// Set writes ts unconditionally.
func (s *Store) Set(ts time.Time) error {
	if ts.IsZero() {
		return services.Wrap(services.ErrValidation, "watermark", "write", "timestamp is zero", nil)
	}
	if err := fileutil.WriteFileAtomic(s.path, []byte(article.FormatEpoch(ts)), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "watermark", "write", s.path, err)
	}
	s.logger.Info("watermark updated", logging.Time("watermark", ts))
	return nil
}

// Advance writes ts only when it is later than the stored value and reports
// whether it wrote.
func (s *Store) Advance(ts time.Time) (bool, error) {
	if ts.IsZero() {
		return false, nil
	}
	current, err := s.Get()
	if err != nil {
		return false, err
	}
	if current != nil && !ts.After(*current) {
		logging.Decision(s.logger, "watermark kept", "watermark_advance", "candidate not newer than stored value",
			logging.Time("watermark", *current),
			logging.Time("candidate", ts),
		)
		return false, nil
	}
	if err := s.Set(ts); err != nil {
		return false, err
	}
	return true, nil
}
