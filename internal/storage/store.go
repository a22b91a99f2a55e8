package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/google/uuid"
)

// Store is the SQLite-backed implementation of memory.Store. It stands
// in for a full-text/vector backend at the same interface boundary: its
// Search scores entries by normalized token overlap over content and
// tags, which is enough for the retrieval pipeline and the CLI to run
// against real data.
type Store struct {
	db *DB
}

// NewStore creates a store over the given database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

const entryColumns = "id, content, type, metadata, created_at, updated_at, access_count, last_accessed_at, is_deleted"

// Create persists a new entry. An empty ID gets a fresh uuid; confidence
// and importance are clamped into their declared ranges here, at the
// write boundary, so readers never have to re-validate.
func (s *Store) Create(ctx context.Context, e *memory.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid memory type: %q", e.Type)
	}
	e.Metadata.Confidence = clampFloat(e.Metadata.Confidence, 0, 1)
	e.Metadata.Importance = clampInt(e.Metadata.Importance, 1, 10)

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.LastAccessedAt.IsZero() {
		e.LastAccessedAt = e.CreatedAt
	}

	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (id, content, type, metadata, created_at, updated_at, access_count, last_accessed_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Content, string(e.Type), string(metadataJSON), e.CreatedAt, e.UpdatedAt, e.AccessCount, e.LastAccessedAt, e.IsDeleted)
	if err != nil {
		return err
	}

	for _, tag := range e.Metadata.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO entry_tags (entry_id, tag) VALUES (?, ?)
		`, e.ID, tag); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CreateRelation persists a relation between two entries.
func (s *Store) CreateRelation(ctx context.Context, r *memory.Relation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO relations (id, source_id, target_id, relation_type, weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.SourceID, r.TargetID, r.RelationType, r.Weight, r.CreatedAt)
	return err
}

// RecordAccess bumps access counters for the given entries. Retrieval
// reads these back through the rerank phase's frequency factor.
func (s *Store) RecordAccess(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		UPDATE entries
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id IN (%s)
	`, placeholders(len(ids)))
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.conn.ExecContext(ctx, query, args...)
	return err
}

// Search scores all live entries by token overlap with the query and
// returns those at or above the threshold, best first.
func (s *Store) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.ScoredEntry, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return []memory.ScoredEntry{}, nil
	}

	entries, err := s.loadEntries(ctx, "WHERE is_deleted = 0", nil)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.ExcludeIDs))
	for _, id := range opts.ExcludeIDs {
		excluded[id] = true
	}

	var results []memory.ScoredEntry
	for _, entry := range entries {
		if excluded[entry.ID] {
			continue
		}
		score := overlapScore(entry, tokens)
		if score < opts.Threshold || score == 0 {
			continue
		}
		results = append(results, memory.ScoredEntry{Entry: *entry, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})
	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	if results == nil {
		results = []memory.ScoredEntry{}
	}
	return results, nil
}

// GetByID fetches one entry; a missing id yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*memory.Entry, error) {
	row := s.db.conn.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ? AND is_deleted = 0", id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetByIDs fetches the entries for the given ids; unknown ids are
// silently skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]*memory.Entry, error) {
	if len(ids) == 0 {
		return []*memory.Entry{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.loadEntries(ctx,
		fmt.Sprintf("WHERE id IN (%s) AND is_deleted = 0", placeholders(len(ids))), args)
}

// GetRelations returns all relations touching entryID on either side.
func (s *Store) GetRelations(ctx context.Context, entryID string) ([]memory.Relation, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation_type, weight, created_at
		FROM relations
		WHERE source_id = ? OR target_id = ?
		ORDER BY created_at
	`, entryID, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	relations := []memory.Relation{}
	for rows.Next() {
		var r memory.Relation
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.RelationType, &r.Weight, &r.CreatedAt); err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}
	return relations, rows.Err()
}

// SearchByTimeRange returns entries created within the range, oldest
// first.
func (s *Store) SearchByTimeRange(ctx context.Context, tr memory.TimeRange) ([]*memory.Entry, error) {
	return s.loadEntries(ctx,
		"WHERE is_deleted = 0 AND created_at >= ? AND created_at <= ? ORDER BY created_at",
		[]any{tr.Start, tr.End})
}

// SearchByType returns entries of the given types, optionally filtered
// by a content substring match on query.
func (s *Store) SearchByType(ctx context.Context, types []memory.Type, query string, limit int) ([]*memory.Entry, error) {
	if len(types) == 0 {
		return []*memory.Entry{}, nil
	}
	args := make([]any, 0, len(types)+2)
	for _, t := range types {
		args = append(args, string(t))
	}
	where := fmt.Sprintf("WHERE is_deleted = 0 AND type IN (%s)", placeholders(len(types)))
	if query != "" {
		where += " AND content LIKE ?"
		args = append(args, "%"+query+"%")
	}
	where += " ORDER BY created_at DESC"
	if limit > 0 {
		where += " LIMIT ?"
		args = append(args, limit)
	}
	return s.loadEntries(ctx, where, args)
}

// SearchByTags returns entries carrying any of the given tags.
func (s *Store) SearchByTags(ctx context.Context, tags []string, limit int) ([]*memory.Entry, error) {
	if len(tags) == 0 {
		return []*memory.Entry{}, nil
	}
	args := make([]any, 0, len(tags)+1)
	for _, tag := range tags {
		args = append(args, tag)
	}
	where := fmt.Sprintf(`
		WHERE is_deleted = 0 AND id IN (
			SELECT DISTINCT entry_id FROM entry_tags WHERE tag IN (%s)
		) ORDER BY created_at DESC`, placeholders(len(tags)))
	if limit > 0 {
		where += " LIMIT ?"
		args = append(args, limit)
	}
	return s.loadEntries(ctx, where, args)
}

// Count returns the number of live entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE is_deleted = 0").Scan(&n)
	return n, err
}

func (s *Store) loadEntries(ctx context.Context, where string, args []any) ([]*memory.Entry, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*memory.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*memory.Entry, error) {
	var entry memory.Entry
	var typeStr, metadataJSON string
	err := row.Scan(
		&entry.ID,
		&entry.Content,
		&typeStr,
		&metadataJSON,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&entry.AccessCount,
		&entry.LastAccessedAt,
		&entry.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	entry.Type = memory.Type(typeStr)
	if err := json.Unmarshal([]byte(metadataJSON), &entry.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", entry.ID, err)
	}
	return &entry, nil
}

// overlapScore is the fraction of query tokens present in the entry's
// content or tags.
func overlapScore(e *memory.Entry, tokens []string) float64 {
	contentLower := strings.ToLower(e.Content)
	matched := 0
	for _, token := range tokens {
		if strings.Contains(contentLower, token) {
			matched++
			continue
		}
		for _, tag := range e.Metadata.Tags {
			if strings.Contains(strings.ToLower(tag), token) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(tokens))
}

// queryTokens lowercases and splits the query, trimming punctuation and
// dropping single-rune tokens.
func queryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r > 127)
		})
		if len([]rune(f)) <= 1 || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
