package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/conference-cms/internal/model"
)

// ContentTable describes where one content kind lives.  Columns lists the
// kind-specific columns in the same order as the model's Fields and
// FieldTargets.
type ContentTable struct {
	Name    string
	Columns []string
	OrderBy string
}

var EventsTable = ContentTable{
	Name: "events",
	Columns: []string{
		"title", "event_date", "start_time", "end_time", "venue",
		"speakers", "theme", "category", "description", "images",
	},
	OrderBy: "event_date DESC, id DESC",
}

var PublicationsTable = ContentTable{
	Name:    "publications",
	Columns: []string{"title", "publication_date", "description", "link"},
	OrderBy: "publication_date DESC, id DESC",
}

const metaColumns = "id, status, created_by, published_by, published_at, created_at, updated_at"

// ContentRepo stores drafts and published items of a single kind in one
// table discriminated by the status column.  Publishing flips the status
// inside a transaction, so an item is never visible in both states.
type ContentRepo[T any, P model.ContentPtr[T]] struct {
	DB    *sql.DB
	Table ContentTable
}

// NewContentRepo builds a repo for one content kind, e.g.
// NewContentRepo[model.Event](db, EventsTable).
func NewContentRepo[T any, P model.ContentPtr[T]](db *sql.DB, table ContentTable) *ContentRepo[T, P] {
	return &ContentRepo[T, P]{DB: db, Table: table}
}

func (r *ContentRepo[T, P]) selectSQL() string {
	return "SELECT " + metaColumns + ", " + strings.Join(r.Table.Columns, ", ") + " FROM " + r.Table.Name
}

func (r *ContentRepo[T, P]) scan(row rowScanner) (P, error) {
	item := P(new(T))
	m := item.ContentMeta()
	dest := append([]any{&m.ID, &m.Status, &m.CreatedBy, &m.PublishedBy, &m.PublishedAt, &m.CreatedAt, &m.UpdatedAt},
		item.FieldTargets()...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// Create inserts item with the status and authorship already set on its
// Meta.  The row is read back in the same transaction so ids and
// timestamps are populated whenever the insert commits.
func (r *ContentRepo[T, P]) Create(ctx context.Context, item P) (P, error) {
	m := item.ContentMeta()
	cols := append([]string{"status", "created_by", "published_by", "published_at"}, r.Table.Columns...)
	args := append([]any{string(m.Status), m.CreatedBy, m.PublishedBy, m.PublishedAt}, item.Fields()...)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	q := "INSERT INTO " + r.Table.Name + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created, err := r.scan(tx.QueryRowContext(ctx, r.selectSQL()+" WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// Get fetches an item by id in the given status.  An item in the other
// status is reported as ErrNotFound.
func (r *ContentRepo[T, P]) Get(ctx context.Context, id uint64, status model.Status) (P, error) {
	row := r.DB.QueryRowContext(ctx, r.selectSQL()+" WHERE id=? AND status=? LIMIT 1", id, string(status))
	return r.scan(row)
}

// List returns one page of items in the given status plus the total count.
func (r *ContentRepo[T, P]) List(ctx context.Context, status model.Status, page, pageSize int) ([]P, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+r.Table.Name+" WHERE status=?", string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	rows, err := r.DB.QueryContext(ctx,
		r.selectSQL()+" WHERE status=? ORDER BY "+r.Table.OrderBy+" LIMIT ? OFFSET ?",
		string(status), pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []P{}
	for rows.Next() {
		item, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// Update overwrites the content fields of item, provided it is still in
// the status recorded on its Meta.
func (r *ContentRepo[T, P]) Update(ctx context.Context, item P) (P, error) {
	m := item.ContentMeta()
	sets := make([]string, 0, len(r.Table.Columns)+1)
	for _, c := range r.Table.Columns {
		sets = append(sets, c+"=?")
	}
	sets = append(sets, "updated_at=CURRENT_TIMESTAMP")
	args := append(item.Fields(), m.ID, string(m.Status))

	res, err := r.DB.ExecContext(ctx,
		"UPDATE "+r.Table.Name+" SET "+strings.Join(sets, ", ")+" WHERE id=? AND status=?", args...)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.Get(ctx, m.ID, m.Status)
}

// Publish turns a draft into a published item in a single transaction.
// The row is locked first so two concurrent publishes cannot both succeed,
// and the published row is read back before commit so a successful
// publish always returns its committed state.
func (r *ContentRepo[T, P]) Publish(ctx context.Context, id, publisherID uint64) (P, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM "+r.Table.Name+" WHERE id=? FOR UPDATE", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if model.Status(status) != model.StatusDraft {
		return nil, ErrNotDraft
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE "+r.Table.Name+" SET status=?, published_by=?, published_at=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
		string(model.StatusPublished), publisherID, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	item, err := r.scan(tx.QueryRowContext(ctx, r.selectSQL()+" WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes an item in the given status.
func (r *ContentRepo[T, P]) Delete(ctx context.Context, id uint64, status model.Status) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM "+r.Table.Name+" WHERE id=? AND status=?", id, string(status))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
