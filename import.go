package favour

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	istore "github.com/nuomicici/astrbot-plugin-Favour-Ultra/internal/store"
)

// ImportJSON imports records from a JSON export produced by ExportJSON.
// Records are upserted by (user_id, scope_id), so re-running an import after
// a partial failure converges on the same state rather than duplicating.
//
// The store's write lock is held for the whole import; large imports block
// other operations until they complete.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	dec := json.NewDecoder(r)
	result := &ImportResult{}

	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected opening brace, got %v", token)
	}

	var version string
	for dec.More() {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		token, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field name: %w", err)
		}
		fieldName, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", token)
		}

		switch fieldName {
		case "version":
			if err := dec.Decode(&version); err != nil {
				return nil, fmt.Errorf("decode version: %w", err)
			}
			if version != ExportVersion {
				return nil, fmt.Errorf("unsupported export version %q (expected %q)", version, ExportVersion)
			}

		case "records":
			if err := s.importRecordArray(ctx, dec, result); err != nil {
				return result, fmt.Errorf("import records: %w", err)
			}

		default:
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return nil, fmt.Errorf("decode %s: %w", fieldName, err)
			}
		}
	}

	if version == "" {
		return nil, fmt.Errorf("missing version field in export file")
	}
	return result, nil
}

func (s *Store) importRecordArray(ctx context.Context, dec *json.Decoder, result *ImportResult) error {
	token, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read record array start: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected record array, got %v", token)
	}

	for dec.More() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var e ExportRecord
		if err := dec.Decode(&e); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("decode record: %v", err))
			continue
		}
		result.Total++

		scope := GlobalScope
		if e.ScopeID != nil {
			scope = *e.ScopeID
		}
		s.importOne(result, e.UserID, scope, e.Favour, e.Relationship, e.IsUnique)
	}

	token, err = dec.Token()
	if err != nil {
		return fmt.Errorf("read record array end: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != ']' {
		return fmt.Errorf("expected record array end, got %v", token)
	}
	return nil
}

// legacyScopedEntry matches the JSON shape of per-conversation data files
// written by earlier releases: one list per scope, numeric values sometimes
// serialized as strings.
type legacyScopedEntry struct {
	UserID       string      `json:"userid"`
	Favour       json.Number `json:"favour"`
	SessionID    *string     `json:"session_id"`
	Relationship string      `json:"relationship"`
	IsUnique     bool        `json:"is_unique"`
}

// ImportLegacyScoped imports a legacy per-scope JSON list. Entries whose
// session_id is null land in defaultScope. Re-running is idempotent.
func (s *Store) ImportLegacyScoped(ctx context.Context, r io.Reader, defaultScope string) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var entries []legacyScopedEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode legacy data: %w", err)
	}

	result := &ImportResult{}
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		result.Total++

		value, err := legacyNumber(e.Favour)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("user %s: bad favour value %q", e.UserID, e.Favour.String()))
			continue
		}
		scope := defaultScope
		if e.SessionID != nil {
			scope = *e.SessionID
		}
		s.importOne(result, e.UserID, scope, value, e.Relationship, e.IsUnique)
	}
	return result, nil
}

// ImportLegacyGlobal imports the legacy global map format, a flat
// {"user_id": value} object, into the global scope.
func (s *Store) ImportLegacyGlobal(ctx context.Context, r io.Reader) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var entries map[string]json.Number
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode legacy global data: %w", err)
	}

	result := &ImportResult{}
	for userID, raw := range entries {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		result.Total++

		value, err := legacyNumber(raw)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("user %s: bad favour value %q", userID, raw.String()))
			continue
		}
		s.importOne(result, userID, GlobalScope, value, "", false)
	}
	return result, nil
}

// importOne validates and upserts a single imported record, tallying the
// outcome into result. Callers hold the write lock.
func (s *Store) importOne(result *ImportResult, userID, scopeID string, value int, relationship string, unique bool) {
	userID = strings.TrimSpace(userID)
	if err := istore.ValidateUserID(userID); err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("user %q: invalid user ID", userID))
		return
	}

	existing, err := s.getRecord(userID, scopeID)
	if err != nil && err != ErrNotFound {
		result.Errors = append(result.Errors, fmt.Sprintf("user %s: read: %v", userID, err))
		return
	}

	rec := &AffinityRecord{
		UserID:       userID,
		ScopeID:      scopeID,
		Value:        s.bounds.Clamp(value),
		Relationship: relationship,
		IsUnique:     unique && relationship != "",
	}
	created := err == ErrNotFound
	if !created {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := s.upsert(rec, created); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("user %s: write: %v", userID, err))
		return
	}
	if created {
		result.Created++
	} else {
		result.Updated++
	}
}

// legacyNumber parses a legacy favour value, tolerating both JSON numbers
// and numeric strings, truncating any fractional part.
func legacyNumber(n json.Number) (int, error) {
	if v, err := n.Int64(); err == nil {
		return int(v), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
