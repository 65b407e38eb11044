package download

import (
	"context"

	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for downloaded media items.
type Repository interface {
	Upsert(ctx context.Context, item *models.MediaItem) error
	GetByID(ctx context.Context, id string) (*models.MediaItem, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]models.MediaItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a media repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Upsert inserts the media item or refreshes the row a re-download of the
// same source produces. The deterministic ID makes the conflict target stable.
func (r *repository) Upsert(ctx context.Context, item *models.MediaItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source_url", "size_bytes", "quality", "downloaded_at",
		}),
	}).Create(item).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerUserID string) ([]models.MediaItem, error) {
	var items []models.MediaItem
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("downloaded_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
