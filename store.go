package favour

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	istore "github.com/nuomicici/astrbot-plugin-Favour-Ultra/internal/store"
	"github.com/nuomicici/astrbot-plugin-Favour-Ultra/internal/store/migrations"
)

const schemaVersion = "1"

// InitialValueFn resolves the starting value for a record created by
// reconciliation. globalSeed is the user's value in the global scope when one
// exists (only supplied in per-scope mode), letting global reputation seed a
// per-conversation starting point.
type InitialValueFn func(globalSeed *int) int

// Store manages the SQLite affinity database.
//
// Mutating operations run their whole read-modify-write sequence under the
// write lock, which serializes concurrent reconciliations against the same
// key (and, at this scale, against every key). Read-only reports take the
// read lock only; a report may reflect a value that changes moments later.
type Store struct {
	db          *sql.DB
	mu          sync.RWMutex
	closed      bool
	path        string
	dataDir     string
	bounds      Bounds
	clearBackup bool
	log         *zap.Logger
}

// OpenStore opens or creates the affinity store under cfg.DataDir.
func OpenStore(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := istore.DBPath(cfg.DataDir)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent readers during mutation
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{
		db:          db,
		path:        path,
		dataDir:     cfg.DataDir,
		bounds:      cfg.Bounds(),
		clearBackup: cfg.ClearBackup,
		log:         log,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// Get retrieves the record for (userID, scopeID).
func (s *Store) Get(userID, scopeID string) (*AffinityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.getRecord(userID, scopeID)
}

func (s *Store) getRecord(userID, scopeID string) (*AffinityRecord, error) {
	row := s.db.QueryRow(`
		SELECT user_id, scope_id, favour, relationship, is_unique, created_at, updated_at
		FROM affinity WHERE user_id = ? AND scope_id = ?
	`, userID, scopeID)
	return scanRecord(row)
}

// Apply runs one reconciliation step against the live record and persists
// the outcome when it changed. The read, reconcile, and write happen under
// the store's write lock; two concurrent Apply calls for the same key can
// never interleave their read-modify-write.
func (s *Store) Apply(userID, scopeID string, delta int, ev *RelationshipEvent, initial InitialValueFn) (ReconcileResult, error) {
	userID = strings.TrimSpace(userID)
	if err := istore.ValidateUserID(userID); err != nil {
		return ReconcileResult{}, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ReconcileResult{}, ErrStoreClosed
	}

	old, err := s.getRecord(userID, scopeID)
	if err != nil && err != ErrNotFound {
		return ReconcileResult{}, fmt.Errorf("store: read record: %w", err)
	}

	initialFn := func() int {
		var seed *int
		if scopeID != GlobalScope {
			if g, gerr := s.getRecord(userID, GlobalScope); gerr == nil {
				seed = &g.Value
			}
		}
		return initial(seed)
	}

	var oldPtr *AffinityRecord
	if err == nil {
		oldPtr = old
	}
	result := Reconcile(oldPtr, delta, ev, initialFn, s.bounds)
	result.Record.UserID = userID
	result.Record.ScopeID = scopeID

	if !result.Changed {
		return result, nil
	}
	if err := s.upsert(&result.Record, oldPtr == nil); err != nil {
		return ReconcileResult{}, err
	}
	if oldPtr != nil {
		s.log.Info("affinity updated",
			zap.String("user", userID),
			zap.String("scope", scopeID),
			zap.Int("from", oldPtr.Value),
			zap.Int("to", result.Record.Value),
			zap.Int("delta", delta),
			zap.String("relationship", result.Record.Relationship))
	} else {
		s.log.Info("affinity record created",
			zap.String("user", userID),
			zap.String("scope", scopeID),
			zap.Int("value", result.Record.Value),
			zap.String("relationship", result.Record.Relationship))
	}
	return result, nil
}

// SetValue overwrites the value for (userID, scopeID), creating the record
// if absent. The value must already lie inside the configured bounds.
func (s *Store) SetValue(userID, scopeID string, value int) (*AffinityRecord, error) {
	userID = strings.TrimSpace(userID)
	if err := istore.ValidateUserID(userID); err != nil {
		return nil, ErrInvalidUserID
	}
	if !s.bounds.Contains(value) {
		return nil, ErrValueOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.mutateRecord(userID, scopeID, func(r *AffinityRecord) {
		r.Value = value
	})
}

// SetRelationship overwrites the relationship for (userID, scopeID),
// creating the record if absent. Admin overwrites bypass reconciliation,
// including the revocation rule.
func (s *Store) SetRelationship(userID, scopeID, name string, unique bool) (*AffinityRecord, error) {
	userID = strings.TrimSpace(userID)
	if err := istore.ValidateUserID(userID); err != nil {
		return nil, ErrInvalidUserID
	}
	if trimmed := strings.TrimSpace(name); trimmed == "" {
		return nil, ErrEmptyRelationship
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.mutateRecord(userID, scopeID, func(r *AffinityRecord) {
		r.Relationship = name
		r.IsUnique = unique
	})
}

// ClearRelationship removes any standing relationship for (userID, scopeID).
func (s *Store) ClearRelationship(userID, scopeID string) (*AffinityRecord, error) {
	userID = strings.TrimSpace(userID)
	if err := istore.ValidateUserID(userID); err != nil {
		return nil, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if _, err := s.getRecord(userID, scopeID); err != nil {
		return nil, err
	}
	return s.mutateRecord(userID, scopeID, func(r *AffinityRecord) {
		r.Relationship = ""
		r.IsUnique = false
	})
}

// mutateRecord applies fn to the existing record (or a zero-valued new one)
// and persists it. Callers hold the write lock.
func (s *Store) mutateRecord(userID, scopeID string, fn func(*AffinityRecord)) (*AffinityRecord, error) {
	rec, err := s.getRecord(userID, scopeID)
	created := false
	if err == ErrNotFound {
		rec = &AffinityRecord{UserID: userID, ScopeID: scopeID}
		created = true
	} else if err != nil {
		return nil, err
	}
	fn(rec)
	rec.Value = s.bounds.Clamp(rec.Value)
	if err := s.upsert(rec, created); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) upsert(rec *AffinityRecord, created bool) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now
	if created {
		rec.CreatedAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO affinity (user_id, scope_id, favour, relationship, is_unique, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, scope_id) DO UPDATE SET
			favour = excluded.favour,
			relationship = excluded.relationship,
			is_unique = excluded.is_unique,
			updated_at = excluded.updated_at
	`,
		rec.UserID,
		rec.ScopeID,
		rec.Value,
		rec.Relationship,
		boolToInt(rec.IsUnique),
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: upsert record: %w", err)
	}
	return nil
}

// Delete removes the record for (userID, scopeID).
func (s *Store) Delete(userID, scopeID string) error {
	userID = strings.TrimSpace(userID)
	if err := istore.ValidateUserID(userID); err != nil {
		return ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.Exec(`DELETE FROM affinity WHERE user_id = ? AND scope_id = ?`, userID, scopeID)
	if err != nil {
		return fmt.Errorf("store: delete record: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every record in one scope ordered by user ID.
func (s *Store) List(scopeID string) ([]AffinityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.queryRecords(`
		SELECT user_id, scope_id, favour, relationship, is_unique, created_at, updated_at
		FROM affinity WHERE scope_id = ? ORDER BY user_id
	`, scopeID)
}

// ListAll returns up to limit records across every scope plus the total
// record count, so reports can mark truncation.
func (s *Store) ListAll(limit int) ([]AffinityRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, 0, ErrStoreClosed
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM affinity`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultListPageSize
	}
	records, err := s.queryRecords(`
		SELECT user_id, scope_id, favour, relationship, is_unique, created_at, updated_at
		FROM affinity ORDER BY scope_id, user_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ExclusiveRelationships returns every (relationship, holder) pair in the
// scope flagged unique, for the prompt-side exclusivity advisory.
func (s *Store) ExclusiveRelationships(scopeID string) ([]ExclusivePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT relationship, user_id FROM affinity
		WHERE scope_id = ? AND is_unique = 1 AND relationship != ''
		ORDER BY relationship, user_id
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("store: query exclusive relationships: %w", err)
	}
	defer rows.Close()

	var pairs []ExclusivePair
	for rows.Next() {
		var p ExclusivePair
		if err := rows.Scan(&p.Relationship, &p.UserID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ClearScope deletes every record in one scope. With backups enabled, the
// data is snapshotted to a timestamped file first; a failed backup aborts
// the clear entirely.
func (s *Store) ClearScope(scopeID string) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, "", ErrStoreClosed
	}
	return s.clearWhere(&scopeID)
}

// Wipe deletes every record in every scope, backing up first when enabled.
func (s *Store) Wipe() (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, "", ErrStoreClosed
	}
	return s.clearWhere(nil)
}

func (s *Store) clearWhere(scopeID *string) (int, string, error) {
	query := `SELECT user_id, scope_id, favour, relationship, is_unique, created_at, updated_at FROM affinity`
	args := []any{}
	if scopeID != nil {
		query += ` WHERE scope_id = ?`
		args = append(args, *scopeID)
	}
	records, err := s.queryRecords(query, args...)
	if err != nil {
		return 0, "", err
	}
	if len(records) == 0 {
		return 0, "", nil
	}

	backupPath := ""
	if s.clearBackup {
		backupPath, err = s.writeBackup(records)
		if err != nil {
			// Data safety over completing the requested action.
			s.log.Error("pre-clear backup failed, aborting clear", zap.Error(err))
			return 0, "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
		}
	} else {
		s.log.Warn("clear without backup: data will not be recoverable")
	}

	del := `DELETE FROM affinity`
	if scopeID != nil {
		del += ` WHERE scope_id = ?`
	}
	res, err := s.db.Exec(del, args...)
	if err != nil {
		return 0, backupPath, fmt.Errorf("store: clear records: %w", err)
	}
	n, _ := res.RowsAffected()
	s.log.Warn("affinity data cleared",
		zap.Int64("records", n),
		zap.String("backup", backupPath))
	return int(n), backupPath, nil
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var records, scopes int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM affinity`).Scan(&records); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT scope_id) FROM affinity`).Scan(&scopes); err != nil {
		return nil, err
	}

	version := schemaVersion
	var stored sql.NullString
	s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&stored)
	if stored.Valid {
		version = stored.String
	}

	return &StoreStats{
		Records:       records,
		Scopes:        scopes,
		Path:          s.path,
		SchemaVersion: version,
	}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) queryRecords(query string, args ...any) ([]AffinityRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	var records []AffinityRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*AffinityRecord, error) {
	var (
		rec       AffinityRecord
		isUnique  int
		createdAt string
		updatedAt string
	)
	err := sc.Scan(
		&rec.UserID,
		&rec.ScopeID,
		&rec.Value,
		&rec.Relationship,
		&isUnique,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.IsUnique = isUnique != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
