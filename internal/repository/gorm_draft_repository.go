package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Stagnxzione/ra-userbot/internal/domain"
)

type draftRow struct {
	ID              string    `gorm:"primaryKey;size:16"`
	UserID          string    `gorm:"size:64;not null;index"`
	Username        string    `gorm:"size:128"`
	CreatedAt       time.Time `gorm:"not null"`
	IncidentType    *string   `gorm:"size:32"`
	Brand           *string   `gorm:"size:32"`
	VehiclePlate    *string   `gorm:"size:16"`
	TrailerPlate    *string   `gorm:"size:16"`
	Location        *string   `gorm:"type:text"`
	ProblemDesc     *string   `gorm:"type:text"`
	Notes           *string   `gorm:"type:text"`
	TrackerMain     *string   `gorm:"size:64"`
	TrackerMechanic *string   `gorm:"size:64"`
	TrackerRecovery *string   `gorm:"size:64"`
	ClosedAt        *time.Time
}

func (draftRow) TableName() string { return "drafts" }

type statusDoneRow struct {
	DraftID   string    `gorm:"primaryKey;size:16"`
	StatusKey string    `gorm:"primaryKey;size:32"`
	DoneAt    time.Time `gorm:"not null"`
}

func (statusDoneRow) TableName() string { return "status_done" }

type statusHistoryRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	DraftID   string    `gorm:"size:16;not null;index"`
	StatusKey string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (statusHistoryRow) TableName() string { return "status_history" }

type inputHistoryRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	DraftID   string    `gorm:"size:16;not null;index"`
	FieldKey  string    `gorm:"size:32;not null"`
	Value     *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

func (inputHistoryRow) TableName() string { return "input_history" }

// AutoMigrate creates the draft tables through gorm. The Postgres deployment
// uses the SQL migrations instead.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&draftRow{}, &statusDoneRow{}, &statusHistoryRow{}, &inputHistoryRow{}); err != nil {
		return fmt.Errorf("repository: auto-migrate: %w", err)
	}
	return nil
}

type gormDraftRepository struct {
	db *gorm.DB
}

// NewGormDraftRepository builds the gorm-backed repository used with the
// embedded SQLite store.
func NewGormDraftRepository(db *gorm.DB) DraftRepository {
	return &gormDraftRepository{db: db}
}

func (r *gormDraftRepository) Create(ctx context.Context, draft *domain.Draft) error {
	row := draftRow{
		ID:        draft.ID,
		UserID:    draft.UserID,
		Username:  draft.Username,
		CreatedAt: draft.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *gormDraftRepository) Get(ctx context.Context, id string) (*domain.Draft, error) {
	var row draftRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var done []statusDoneRow
	if err := r.db.WithContext(ctx).Where("draft_id = ?", id).Find(&done).Error; err != nil {
		return nil, err
	}

	draft := &domain.Draft{
		ID:           row.ID,
		UserID:       row.UserID,
		Username:     row.Username,
		CreatedAt:    row.CreatedAt,
		IncidentType: row.IncidentType,
		Brand:        row.Brand,
		VehiclePlate: row.VehiclePlate,
		TrailerPlate: row.TrailerPlate,
		Location:     row.Location,
		ProblemDesc:  row.ProblemDesc,
		Notes:        row.Notes,
		MainKey:      row.TrackerMain,
		MechanicKey:  row.TrackerMechanic,
		RecoveryKey:  row.TrackerRecovery,
		ClosedAt:     row.ClosedAt,
		StatusDone:   make(map[domain.StatusKey]time.Time, len(done)),
	}
	for _, d := range done {
		draft.StatusDone[domain.StatusKey(d.StatusKey)] = d.DoneAt
	}
	return draft, nil
}

func (r *gormDraftRepository) SaveField(ctx context.Context, id string, column domain.Column, value *string) error {
	if !column.IsWritable() {
		return fmt.Errorf("column %q is not writable", column)
	}
	result := r.db.WithContext(ctx).Model(&draftRow{}).Where("id = ?", id).Update(string(column), value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormDraftRepository) MarkStatusDone(ctx context.Context, id string, key domain.StatusKey, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		done := statusDoneRow{DraftID: id, StatusKey: string(key), DoneAt: at}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&done).Error; err != nil {
			return err
		}
		history := statusHistoryRow{DraftID: id, StatusKey: string(key), CreatedAt: at}
		return tx.Create(&history).Error
	})
}

func (r *gormDraftRepository) LogInput(ctx context.Context, id string, field domain.FieldKey, value *string, at time.Time) error {
	row := inputHistoryRow{DraftID: id, FieldKey: string(field), Value: value, CreatedAt: at}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *gormDraftRepository) Close(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&draftRow{}).Where("id = ?", id).Update("closed_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormDraftRepository) ListInputs(ctx context.Context, id string) ([]domain.InputEntry, error) {
	var rows []inputHistoryRow
	if err := r.db.WithContext(ctx).Where("draft_id = ?", id).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.InputEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.InputEntry{
			ID:        row.ID,
			DraftID:   row.DraftID,
			Field:     domain.FieldKey(row.FieldKey),
			Value:     row.Value,
			CreatedAt: row.CreatedAt,
		})
	}
	return result, nil
}

func (r *gormDraftRepository) ListStatusHistory(ctx context.Context, id string) ([]domain.StatusEntry, error) {
	var rows []statusHistoryRow
	if err := r.db.WithContext(ctx).Where("draft_id = ?", id).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.StatusEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.StatusEntry{
			ID:        row.ID,
			DraftID:   row.DraftID,
			Status:    domain.StatusKey(row.StatusKey),
			CreatedAt: row.CreatedAt,
		})
	}
	return result, nil
}

func (r *gormDraftRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
