package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"scholardigest/internal/article"
	"scholardigest/internal/fileutil"
	"scholardigest/internal/logging"
)

// CSVTable stores records in a flat CSV file with a header row.
type CSVTable struct {
	path   string
	logger *slog.Logger
}

// NewCSVTable returns a table backed by path. The file is created on the
// first write.
func NewCSVTable(path string, logger *slog.Logger) *CSVTable {
	return &CSVTable{path: path, logger: logging.NewComponentLogger(logger, "storage.csv")}
}

// Path returns the backing file location.
func (t *CSVTable) Path() string {
	return t.path
}

// csvSnapshot is the parsed content of the file.
type csvSnapshot struct {
	records []article.Record
	index   map[string]int
	// missing lists canonical columns absent from the header.
	missing []string
	// legacy is set when the header uses non-canonical names or order.
	legacy bool
	exists bool
}

func (t *CSVTable) read() (*csvSnapshot, error) {
	snap := &csvSnapshot{index: map[string]int{}}
	file, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snap, nil
		}
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer file.Close()
	snap.exists = true

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read header: %w", ErrCorruptStore, t.path, err)
	}

	mapping := make([]string, len(header))
	present := map[string]bool{}
	for i, name := range header {
		col, ok := canonicalColumn(name)
		if !ok || present[col] {
			continue
		}
		mapping[i] = col
		present[col] = true
	}
	if !present[colContentHash] && !present[colTitle] {
		return nil, fmt.Errorf("%w: %s: header has neither %s nor %s", ErrCorruptStore, t.path, colContentHash, colTitle)
	}
	for _, col := range columns {
		if !present[col] {
			snap.missing = append(snap.missing, col)
		}
	}
	snap.legacy = len(snap.missing) > 0 || len(header) != len(columns)
	if !snap.legacy {
		for i, name := range header {
			if name != columns[i] {
				snap.legacy = true
				break
			}
		}
	}

	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: %s: line %d: %w", ErrCorruptStore, t.path, line, err)
		}
		values := make(map[string]string, len(columns))
		for i, cell := range row {
			if i < len(mapping) && mapping[i] != "" {
				values[mapping[i]] = cell
			}
		}
		rec, err := recordFromValues(values)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: line %d: %w", ErrCorruptStore, t.path, line, err)
		}
		if _, dup := snap.index[rec.ContentHash]; dup {
			t.logger.Debug("duplicate key in csv table; keeping first row",
				logging.String(logging.FieldContentHash, rec.ContentHash),
				logging.Int("line", line),
			)
			continue
		}
		snap.index[rec.ContentHash] = len(snap.records)
		snap.records = append(snap.records, rec)
	}
	return snap, nil
}

func (t *CSVTable) write(records []article.Record) error {
	return fileutil.WriteAtomic(t.path, 0o644, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, rec := range records {
			if err := writer.Write(recordValues(rec)); err != nil {
				return fmt.Errorf("write row %s: %w", rec.ContentHash, err)
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// Append inserts records whose key is not yet stored.
func (t *CSVTable) Append(ctx context.Context, records []article.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	snap, err := t.read()
	if err != nil {
		return 0, err
	}
	combined := snap.records
	inserted := 0
	for _, rec := range dedupeFirst(records) {
		if _, ok := snap.index[rec.ContentHash]; ok {
			continue
		}
		snap.index[rec.ContentHash] = len(combined)
		combined = append(combined, rec)
		inserted++
	}
	if inserted == 0 {
		return 0, nil
	}
	if err := t.write(combined); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Load returns every stored record.
func (t *CSVTable) Load(ctx context.Context) ([]article.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := t.read()
	if err != nil {
		return nil, err
	}
	return snap.records, nil
}

// Update applies partial updates by key and rewrites the file when anything
// changed.
func (t *CSVTable) Update(ctx context.Context, updates []article.Update) (UpdateResult, error) {
	var result UpdateResult
	if len(updates) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	snap, err := t.read()
	if err != nil {
		return result, err
	}
	for _, update := range updates {
		idx, ok := snap.index[update.Key]
		if !ok {
			result.Skipped++
			continue
		}
		update.Fields.Apply(&snap.records[idx])
		result.Updated++
	}
	if result.Updated == 0 {
		return result, nil
	}
	if err := t.write(snap.records); err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

// Repair rewrites a file whose header is missing canonical columns or uses
// legacy names. It reports whether a rewrite happened.
func (t *CSVTable) Repair(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	snap, err := t.read()
	if err != nil {
		return false, err
	}
	if !snap.exists || !snap.legacy {
		return false, nil
	}
	if err := t.write(snap.records); err != nil {
		return false, err
	}
	t.logger.Info("csv table schema repaired",
		logging.String("path", t.path),
		logging.String("added_columns", strings.Join(snap.missing, ",")),
		logging.Int("records", len(snap.records)),
	)
	return true, nil
}

// Close is a no-op; the file is only open during calls.
func (t *CSVTable) Close() error {
	return nil
}
