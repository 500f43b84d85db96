// Package sqlite provides a SQLite-backed ledger.Store.
//
// The store owns the schema (created on open) and implements the
// consolidation commit as a single transaction: parent lookup, reflection
// insert, message backfill, tag resolution and linking, and the cursor
// advance either all land or none do.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/ene/pkg/ledger"
)

// Store implements ledger.Store on SQLite via github.com/mattn/go-sqlite3.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// dbPath can be a file path or ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to :memory: would otherwise see its own
	// empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS message (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		author TEXT NOT NULL CHECK (author IN ('person', 'assistant')),
		content TEXT NOT NULL,
		reflection_id INTEGER REFERENCES reflection(id),
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_message_conversation ON message(conversation_id, id);
	CREATE INDEX IF NOT EXISTS idx_message_reflection ON message(reflection_id);

	CREATE TABLE IF NOT EXISTS reflection (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_id INTEGER REFERENCES reflection(id),
		summary TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS consolidation_cursor (
		conversation_id INTEGER PRIMARY KEY,
		last_reflected_message_id INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tag (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tag_message (
		message_id INTEGER NOT NULL REFERENCES message(id),
		tag_id INTEGER NOT NULL REFERENCES tag(id),
		PRIMARY KEY (message_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS tag_reflection (
		reflection_id INTEGER NOT NULL REFERENCES reflection(id),
		tag_id INTEGER NOT NULL REFERENCES tag(id),
		PRIMARY KEY (reflection_id, tag_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AppendMessage appends one turn and returns it with the assigned id.
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, author ledger.Author, content string) (*ledger.Message, error) {
	now := time.Now().UTC()

	query := `INSERT INTO message (conversation_id, author, content, created_at) VALUES (?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query, conversationID, string(author), content, now)
	if err != nil {
		return nil, classify("insert message", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify("insert message", err)
	}

	return &ledger.Message{
		ID:             id,
		ConversationID: conversationID,
		Author:         author,
		Content:        content,
		CreatedAt:      now,
	}, nil
}

// MessagesAfter returns the conversation's messages with id > sinceID,
// ascending. sinceID 0 reads from the beginning.
func (s *Store) MessagesAfter(ctx context.Context, conversationID, sinceID int64) ([]*ledger.Message, error) {
	query := `
	SELECT id, conversation_id, author, content, reflection_id, created_at
	FROM message
	WHERE conversation_id = ? AND id > ?
	ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, conversationID, sinceID)
	if err != nil {
		return nil, classify("query messages", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// LatestReflection returns the most recent reflection reachable from the
// conversation's messages, or ledger.ErrNotFound when none exists.
func (s *Store) LatestReflection(ctx context.Context, conversationID int64) (*ledger.Reflection, error) {
	query := `
	SELECT id, parent_id, summary, created_at
	FROM reflection
	WHERE id = (
		SELECT MAX(reflection_id) FROM message
		WHERE conversation_id = ? AND reflection_id IS NOT NULL
	)`

	return s.scanOneReflection(s.db.QueryRowContext(ctx, query, conversationID))
}

// ReflectionChain returns the conversation's reflections newest first by
// walking parent links from the latest one.
func (s *Store) ReflectionChain(ctx context.Context, conversationID int64) ([]*ledger.Reflection, error) {
	latest, err := s.LatestReflection(ctx, conversationID)
	if err != nil {
		if _, ok := err.(ledger.ErrNotFound); ok {
			return nil, nil
		}
		return nil, err
	}

	query := `
	WITH RECURSIVE chain(id, parent_id, summary, created_at) AS (
		SELECT id, parent_id, summary, created_at FROM reflection WHERE id = ?
		UNION ALL
		SELECT r.id, r.parent_id, r.summary, r.created_at
		FROM reflection r JOIN chain c ON r.id = c.parent_id
	)
	SELECT id, parent_id, summary, created_at FROM chain`

	rows, err := s.db.QueryContext(ctx, query, latest.ID)
	if err != nil {
		return nil, classify("query reflection chain", err)
	}
	defer rows.Close()

	var chain []*ledger.Reflection
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}

	return chain, rows.Err()
}

// LastReflectedID returns the consolidation cursor, 0 when unset.
func (s *Store) LastReflectedID(ctx context.Context, conversationID int64) (int64, error) {
	query := `SELECT last_reflected_message_id FROM consolidation_cursor WHERE conversation_id = ?`

	var id int64
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, classify("query cursor", err)
	}

	return id, nil
}

// Tags returns all tags ordered by id.
func (s *Store) Tags(ctx context.Context) ([]*ledger.Tag, error) {
	query := `SELECT id, label, created_at FROM tag ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("query tags", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

// ReflectionTags returns the tags linked to a reflection.
func (s *Store) ReflectionTags(ctx context.Context, reflectionID int64) ([]*ledger.Tag, error) {
	query := `
	SELECT t.id, t.label, t.created_at
	FROM tag t
	JOIN tag_reflection tr ON tr.tag_id = t.id
	WHERE tr.reflection_id = ?
	ORDER BY t.id`

	rows, err := s.db.QueryContext(ctx, query, reflectionID)
	if err != nil {
		return nil, classify("query reflection tags", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

// Consolidate commits one consolidation unit atomically. See ledger.Store.
func (s *Store) Consolidate(ctx context.Context, unit ledger.ConsolidationUnit) (*ledger.Reflection, error) {
	if len(unit.MessageIDs) == 0 {
		return nil, fmt.Errorf("consolidation unit for conversation %d has no messages", unit.ConversationID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin consolidation", err)
	}
	defer tx.Rollback()

	// Stale precondition: a concurrent unit that committed first already
	// advanced the cursor to or past our current message id.
	var cursor int64
	err = tx.QueryRowContext(ctx,
		`SELECT last_reflected_message_id FROM consolidation_cursor WHERE conversation_id = ?`,
		unit.ConversationID,
	).Scan(&cursor)
	if err != nil && err != sql.ErrNoRows {
		return nil, classify("query cursor", err)
	}
	if cursor >= unit.CurrentMessageID {
		return nil, ledger.ErrStaleCursor{
			ConversationID:   unit.ConversationID,
			CursorID:         cursor,
			CurrentMessageID: unit.CurrentMessageID,
		}
	}

	// The parent link is re-read here, inside the transaction, rather than
	// taken from whatever the trigger path saw earlier.
	var parentID *int64
	var pid sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(reflection_id) FROM message WHERE conversation_id = ? AND reflection_id IS NOT NULL`,
		unit.ConversationID,
	).Scan(&pid)
	if err != nil && err != sql.ErrNoRows {
		return nil, classify("query parent reflection", err)
	}
	if pid.Valid {
		parentID = &pid.Int64
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reflection (parent_id, summary, created_at) VALUES (?, ?, ?)`,
		parentID, unit.Summary, now,
	)
	if err != nil {
		return nil, classify("insert reflection", err)
	}
	reflectionID, err := res.LastInsertId()
	if err != nil {
		return nil, classify("insert reflection", err)
	}

	if err := s.backfill(ctx, tx, unit, reflectionID); err != nil {
		return nil, err
	}

	tagIDs, err := s.resolveTags(ctx, tx, unit, now)
	if err != nil {
		return nil, err
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tag_reflection (reflection_id, tag_id) VALUES (?, ?)`,
			reflectionID, tagID,
		); err != nil {
			return nil, classify("link tag", err)
		}
	}

	// Guarded upsert keeps the cursor monotonic even if the precondition
	// check above ever races another writer.
	res, err = tx.ExecContext(ctx, `
	INSERT INTO consolidation_cursor (conversation_id, last_reflected_message_id)
	VALUES (?, ?)
	ON CONFLICT(conversation_id) DO UPDATE
		SET last_reflected_message_id = excluded.last_reflected_message_id
		WHERE excluded.last_reflected_message_id > consolidation_cursor.last_reflected_message_id`,
		unit.ConversationID, unit.CurrentMessageID,
	)
	if err != nil {
		return nil, classify("advance cursor", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ledger.ErrStaleCursor{
			ConversationID:   unit.ConversationID,
			CursorID:         cursor,
			CurrentMessageID: unit.CurrentMessageID,
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("commit consolidation", err)
	}

	return &ledger.Reflection{
		ID:        reflectionID,
		ParentID:  parentID,
		Summary:   unit.Summary,
		CreatedAt: now,
	}, nil
}

// backfill sets reflection_id on exactly the unit's messages. Every id must
// match an unconsolidated message of the conversation; anything else means
// the unit was built against state that no longer exists.
func (s *Store) backfill(ctx context.Context, tx *sql.Tx, unit ledger.ConsolidationUnit, reflectionID int64) error {
	placeholders := strings.Repeat("?,", len(unit.MessageIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(unit.MessageIDs)+2)
	args = append(args, reflectionID, unit.ConversationID)
	for _, id := range unit.MessageIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
	UPDATE message SET reflection_id = ?
	WHERE conversation_id = ? AND reflection_id IS NULL AND id IN (%s)`, placeholders)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return classify("backfill messages", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify("backfill messages", err)
	}
	if n != int64(len(unit.MessageIDs)) {
		return fmt.Errorf("backfill touched %d of %d messages for conversation %d",
			n, len(unit.MessageIDs), unit.ConversationID)
	}

	return nil
}

// resolveTags combines the unit's selected tag ids with get-or-created rows
// for its new labels, deduplicating labels before touching storage.
func (s *Store) resolveTags(ctx context.Context, tx *sql.Tx, unit ledger.ConsolidationUnit, now time.Time) ([]int64, error) {
	ids := make([]int64, 0, len(unit.SelectedTagIDs)+len(unit.NewTagLabels))
	ids = append(ids, unit.SelectedTagIDs...)

	seen := make(map[string]struct{}, len(unit.NewTagLabels))
	for _, label := range unit.NewTagLabels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}

		// Idempotent get-or-create keyed by the unique label.
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tag (label, created_at) VALUES (?, ?)`,
			label, now,
		); err != nil {
			return nil, classify("create tag", err)
		}

		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM tag WHERE label = ?`, label,
		).Scan(&id); err != nil {
			return nil, classify("lookup tag", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// Close closes the store and releases any resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) scanOneReflection(row *sql.Row) (*ledger.Reflection, error) {
	var r ledger.Reflection
	var parent sql.NullInt64

	err := row.Scan(&r.ID, &parent, &r.Summary, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound{Entity: "reflection"}
	}
	if err != nil {
		return nil, classify("scan reflection", err)
	}

	if parent.Valid {
		r.ParentID = &parent.Int64
	}

	return &r, nil
}

func scanReflection(rows *sql.Rows) (*ledger.Reflection, error) {
	var r ledger.Reflection
	var parent sql.NullInt64

	if err := rows.Scan(&r.ID, &parent, &r.Summary, &r.CreatedAt); err != nil {
		return nil, classify("scan reflection", err)
	}
	if parent.Valid {
		r.ParentID = &parent.Int64
	}

	return &r, nil
}

func scanMessages(rows *sql.Rows) ([]*ledger.Message, error) {
	var messages []*ledger.Message
	for rows.Next() {
		var m ledger.Message
		var author string
		var reflection sql.NullInt64

		if err := rows.Scan(&m.ID, &m.ConversationID, &author, &m.Content, &reflection, &m.CreatedAt); err != nil {
			return nil, classify("scan message", err)
		}

		m.Author = ledger.Author(author)
		if reflection.Valid {
			m.ReflectionID = &reflection.Int64
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}

func scanTags(rows *sql.Rows) ([]*ledger.Tag, error) {
	var tags []*ledger.Tag
	for rows.Next() {
		var t ledger.Tag
		if err := rows.Scan(&t.ID, &t.Label, &t.CreatedAt); err != nil {
			return nil, classify("scan tag", err)
		}
		tags = append(tags, &t)
	}

	return tags, rows.Err()
}

// classify wraps a driver error with its retryability: lock contention and
// connection-level failures are transient, constraint violations are not.
func classify(op string, err error) error {
	transient := false
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen:
			transient = true
		}
	}

	return &ledger.StorageError{Op: op, Err: err, Transient: transient}
}
