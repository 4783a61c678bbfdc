package favour

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportFormat is the top-level structure for JSON exports.
type ExportFormat struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Records    []ExportRecord `json:"records"`
}

// ExportRecord is an affinity record in export format. ScopeID is null for
// global-scope records so that exports round-trip through tools that treat
// absent scope as "everywhere".
type ExportRecord struct {
	UserID       string    `json:"user_id"`
	ScopeID      *string   `json:"scope_id"`
	Favour       int       `json:"favour"`
	Relationship string    `json:"relationship,omitempty"`
	IsUnique     bool      `json:"is_unique,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

func exportRecord(rec *AffinityRecord) ExportRecord {
	e := ExportRecord{
		UserID:       rec.UserID,
		Favour:       rec.Value,
		Relationship: rec.Relationship,
		IsUnique:     rec.IsUnique,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if rec.ScopeID != GlobalScope {
		scope := rec.ScopeID
		e.ScopeID = &scope
	}
	return e
}

// ExportJSON streams every affinity record as JSON to the writer.
// Records are written one at a time to avoid holding the full set in memory.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	header := fmt.Sprintf(`{"version":"%s","exported_at":"%s","records":[`,
		ExportVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, scope_id, favour, relationship, is_unique, created_at, updated_at
		FROM affinity ORDER BY scope_id, user_id
	`)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	first := true

	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := scanRecord(rows)
		if err != nil {
			return fmt.Errorf("scan record: %w", err)
		}

		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		first = false

		if err := enc.Encode(exportRecord(rec)); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}

	if _, err := io.WriteString(w, "]}"); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	return nil
}

// writeBackup snapshots the given records to a timestamped JSON file in the
// data directory and returns the file path. Callers hold the write lock.
func (s *Store) writeBackup(records []AffinityRecord) (string, error) {
	name := fmt.Sprintf("affinity_backup_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dataDir, name)

	out := ExportFormat{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Records:    make([]ExportRecord, 0, len(records)),
	}
	for i := range records {
		out.Records = append(out.Records, exportRecord(&records[i]))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close backup: %w", err)
	}
	return path, nil
}
