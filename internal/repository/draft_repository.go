package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Stagnxzione/ra-userbot/internal/domain"
)

// ErrNotFound is returned when a draft id does not exist.
var ErrNotFound = errors.New("draft not found")

// DraftRepository persists drafts and their audit trail. Calls for different
// draft ids may run concurrently; writes to one draft are serialized by the
// caller.
type DraftRepository interface {
	Create(ctx context.Context, draft *domain.Draft) error
	Get(ctx context.Context, id string) (*domain.Draft, error)
	SaveField(ctx context.Context, id string, column domain.Column, value *string) error
	MarkStatusDone(ctx context.Context, id string, key domain.StatusKey, at time.Time) error
	LogInput(ctx context.Context, id string, field domain.FieldKey, value *string, at time.Time) error
	Close(ctx context.Context, id string, at time.Time) error
	ListInputs(ctx context.Context, id string) ([]domain.InputEntry, error)
	ListStatusHistory(ctx context.Context, id string) ([]domain.StatusEntry, error)
	Ping(ctx context.Context) error
}

type draftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository builds the Postgres-backed repository.
func NewDraftRepository(pool *pgxpool.Pool) DraftRepository {
	return &draftRepository{pool: pool}
}

func (r *draftRepository) Create(ctx context.Context, draft *domain.Draft) error {
	const query = `
        INSERT INTO drafts (id, user_id, username, created_at)
        VALUES ($1,$2,$3,$4)`
	_, err := r.pool.Exec(ctx, query, draft.ID, draft.UserID, draft.Username, draft.CreatedAt)
	return err
}

func (r *draftRepository) Get(ctx context.Context, id string) (*domain.Draft, error) {
	const query = `
        SELECT id, user_id, username, created_at,
               incident_type, brand, vehicle_plate, trailer_plate, location, problem_desc, notes,
               tracker_main, tracker_mechanic, tracker_recovery, closed_at
        FROM drafts WHERE id=$1`
	draft := domain.Draft{StatusDone: make(map[domain.StatusKey]time.Time)}
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&draft.ID,
		&draft.UserID,
		&draft.Username,
		&draft.CreatedAt,
		&draft.IncidentType,
		&draft.Brand,
		&draft.VehiclePlate,
		&draft.TrailerPlate,
		&draft.Location,
		&draft.ProblemDesc,
		&draft.Notes,
		&draft.MainKey,
		&draft.MechanicKey,
		&draft.RecoveryKey,
		&draft.ClosedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	const doneQuery = `SELECT status_key, done_at FROM status_done WHERE draft_id=$1`
	rows, err := r.pool.Query(ctx, doneQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var at time.Time
		if err := rows.Scan(&key, &at); err != nil {
			return nil, err
		}
		draft.StatusDone[domain.StatusKey(key)] = at
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) SaveField(ctx context.Context, id string, column domain.Column, value *string) error {
	if !column.IsWritable() {
		return fmt.Errorf("column %q is not writable", column)
	}
	// column is whitelisted above.
	query := fmt.Sprintf(`UPDATE drafts SET %s=$1 WHERE id=$2`, column)
	cmd, err := r.pool.Exec(ctx, query, value, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkStatusDone adds the milestone to the done-set when absent and always
// appends a history row, so repeated marks stay visible in the audit trail.
func (r *draftRepository) MarkStatusDone(ctx context.Context, id string, key domain.StatusKey, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const doneQuery = `
        INSERT INTO status_done (draft_id, status_key, done_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (draft_id, status_key) DO NOTHING`
	if _, err := tx.Exec(ctx, doneQuery, id, string(key), at); err != nil {
		return err
	}
	const historyQuery = `
        INSERT INTO status_history (draft_id, status_key, created_at)
        VALUES ($1,$2,$3)`
	if _, err := tx.Exec(ctx, historyQuery, id, string(key), at); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *draftRepository) LogInput(ctx context.Context, id string, field domain.FieldKey, value *string, at time.Time) error {
	const query = `
        INSERT INTO input_history (draft_id, field_key, value, created_at)
        VALUES ($1,$2,$3,$4)`
	_, err := r.pool.Exec(ctx, query, id, string(field), value, at)
	return err
}

func (r *draftRepository) Close(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE drafts SET closed_at=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *draftRepository) ListInputs(ctx context.Context, id string) ([]domain.InputEntry, error) {
	const query = `
        SELECT id, draft_id, field_key, value, created_at
        FROM input_history WHERE draft_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.InputEntry
	for rows.Next() {
		var entry domain.InputEntry
		var field string
		if err := rows.Scan(&entry.ID, &entry.DraftID, &field, &entry.Value, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Field = domain.FieldKey(field)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *draftRepository) ListStatusHistory(ctx context.Context, id string) ([]domain.StatusEntry, error) {
	const query = `
        SELECT id, draft_id, status_key, created_at
        FROM status_history WHERE draft_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusEntry
	for rows.Next() {
		var entry domain.StatusEntry
		var key string
		if err := rows.Scan(&entry.ID, &entry.DraftID, &key, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Status = domain.StatusKey(key)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *draftRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
