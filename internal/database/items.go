package database

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNotFound is returned when a media item does not exist. Tasks treat it
// as a signal to exit quietly: items may be deleted mid-flight by the
// upload layer and that is not an error.
var ErrNotFound = errors.New("media item not found")

const itemColumns = `id, album_id, kind, file_path, thumbnail_path, title, description,
	ai_description, ai_tags, ai_confidence, embedding,
	processing_status, processing_error, processed_at, uploaded_at`

// CreateItem inserts a new media item in pending state and sets its ID.
func (d *Database) CreateItem(ctx context.Context, item *MediaItem) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_item", start, err) }()

	if !item.Kind.Valid() {
		err = fmt.Errorf("invalid media kind %q", item.Kind)
		return err
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.UploadedAt.IsZero() {
		item.UploadedAt = time.Now()
	}

	tags, err := json.Marshal(item.AITags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO media_items (album_id, kind, file_path, thumbnail_path, title, description,
			ai_description, ai_tags, ai_confidence, embedding,
			processing_status, processing_error, processed_at, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.AlbumID, item.Kind, item.FilePath, item.ThumbnailPath, item.Title, item.Description,
		item.AIDescription, string(tags), item.AIConfidence, encodeEmbedding(item.Embedding),
		item.Status, item.ProcessingError, nullUnix(item.ProcessedAt), item.UploadedAt.Unix(),
	)
	if err != nil {
		return err
	}

	item.ID, err = res.LastInsertId()
	return err
}

// GetItem retrieves a single media item by ID.
func (d *Database) GetItem(ctx context.Context, id int64) (*MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_item", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM media_items WHERE id = ?", id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return item, err
}

// SelectPending returns up to limit pending items of the given kind,
// oldest upload first. Items already processing are never re-selected.
func (d *Database) SelectPending(ctx context.Context, kind Kind, limit int) ([]MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("select_pending", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM media_items
		WHERE kind = ? AND processing_status = ?
		ORDER BY uploaded_at ASC, id ASC
		LIMIT ?`, kind, StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanItems(rows)
}

// MarkProcessing attempts the pending → processing transition for one
// item. The guard is the UPDATE's WHERE clause: under concurrent callers
// exactly one observes rowsAffected == 1. A plain read-then-write here
// would admit double processing.
func (d *Database) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	return d.transition(ctx, id, StatusPending, StatusProcessing)
}

// ResetToPending re-enqueues a failed (or wedged processing) item by
// moving it back to pending. Used by operator retry actions only.
func (d *Database) ResetToPending(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset_item", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE media_items
		SET processing_status = ?, processing_error = ''
		WHERE id = ? AND processing_status IN (?, ?)`,
		StatusPending, id, StatusFailed, StatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ResetFailed moves every failed item of the given kind back to pending
// and reports how many were reset.
func (d *Database) ResetFailed(ctx context.Context, kind Kind) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset_item", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE media_items
		SET processing_status = ?, processing_error = ''
		WHERE kind = ? AND processing_status = ?`,
		StatusPending, kind, StatusFailed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *Database) transition(ctx context.Context, id int64, from, to Status) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("transition", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE media_items SET processing_status = ?
		WHERE id = ? AND processing_status = ?`, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CompleteItem performs the processing → completed transition, persisting
// the analysis result and embedding, clearing any prior error and
// stamping processedAt. The embedding may be nil (degraded success when
// only the embedding step failed); search skips such items in the vector
// pass.
func (d *Database) CompleteItem(ctx context.Context, id int64, description string, tags []string, confidence float64, embedding []float32) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("complete_item", start, err) }()

	encoded, err := json.Marshal(tags)
	if err != nil {
		return false, fmt.Errorf("encode tags: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE media_items
		SET processing_status = ?, ai_description = ?, ai_tags = ?, ai_confidence = ?,
			embedding = ?, processing_error = '', processed_at = ?
		WHERE id = ? AND processing_status = ?`,
		StatusCompleted, description, string(encoded), confidence,
		encodeEmbedding(embedding), time.Now().Unix(),
		id, StatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// FailItem performs the processing → failed transition, recording the
// error text verbatim. Prior AI fields are left untouched.
func (d *Database) FailItem(ctx context.Context, id int64, errMsg string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("fail_item", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE media_items
		SET processing_status = ?, processing_error = ?
		WHERE id = ? AND processing_status = ?`,
		StatusFailed, errMsg, id, StatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Candidates returns items in scope for the search engine, newest upload
// first. Visibility filtering happened before this call; scope only
// narrows by album and kind.
func (d *Database) Candidates(ctx context.Context, scope Scope) ([]MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("candidates", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query, args := scopedQuery("SELECT "+itemColumns+" FROM media_items", scope)
	query += " ORDER BY uploaded_at DESC, id DESC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanItems(rows)
}

// StatusCounts aggregates item counts by processing status within scope.
// Orphan detection needs the storage layer, so pending file paths are
// returned separately via PendingPaths; the scheduler folds orphans in.
func (d *Database) StatusCounts(ctx context.Context, scope Scope) (StatusCounts, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("status_counts", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query, args := scopedQuery(
		"SELECT processing_status, COUNT(*) FROM media_items", scope)
	query += " GROUP BY processing_status"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return StatusCounts{}, err
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status Status
		var n int
		if err = rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, err
		}
		counts.Total += n
		switch status {
		case StatusPending:
			counts.Pending += n
		case StatusProcessing:
			counts.Processing += n
		case StatusCompleted:
			counts.Completed += n
		case StatusFailed:
			counts.Failed += n
		}
	}
	err = rows.Err()
	return counts, err
}

// PendingItems returns all pending items in scope, oldest first, for
// orphan screening.
func (d *Database) PendingItems(ctx context.Context, scope Scope) ([]MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("select_pending", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query, args := scopedQuery("SELECT "+itemColumns+" FROM media_items", scope)
	if strings.Contains(query, "WHERE") {
		query += " AND processing_status = ?"
	} else {
		query += " WHERE processing_status = ?"
	}
	args = append(args, StatusPending)
	query += " ORDER BY uploaded_at ASC, id ASC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanItems(rows)
}

func scopedQuery(base string, scope Scope) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if scope.AlbumID != 0 {
		conds = append(conds, "album_id = ?")
		args = append(args, scope.AlbumID)
	}
	if scope.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, scope.Kind)
	}
	if len(conds) > 0 {
		base += " WHERE " + strings.Join(conds, " AND ")
	}
	return base, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*MediaItem, error) {
	var item MediaItem
	var tags string
	var embedding []byte
	var processedAt sql.NullInt64
	var uploadedAt int64

	err := row.Scan(
		&item.ID, &item.AlbumID, &item.Kind, &item.FilePath, &item.ThumbnailPath,
		&item.Title, &item.Description,
		&item.AIDescription, &tags, &item.AIConfidence, &embedding,
		&item.Status, &item.ProcessingError, &processedAt, &uploadedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &item.AITags); err != nil {
		return nil, fmt.Errorf("decode tags for item %d: %w", item.ID, err)
	}
	item.Embedding, err = decodeEmbedding(embedding)
	if err != nil {
		return nil, fmt.Errorf("decode embedding for item %d: %w", item.ID, err)
	}
	if processedAt.Valid {
		t := time.Unix(processedAt.Int64, 0)
		item.ProcessedAt = &t
	}
	item.UploadedAt = time.Unix(uploadedAt, 0)

	return &item, nil
}

func scanItems(rows *sql.Rows) ([]MediaItem, error) {
	var items []MediaItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func nullUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// encodeEmbedding packs a float32 vector into a little-endian blob.
// A nil vector stores as NULL.
func encodeEmbedding(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
