package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/models"
)

// TripFilter narrows the trips listed for a user. Zero values disable a filter.
type TripFilter struct {
	Status models.TripStatus
	Role   models.TripRole
}

// Page selects a 1-based window of results.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TripWithRole is a trip joined with the listing user's role on it.
type TripWithRole struct {
	models.Trip
	UserRoleInTrip models.TripRole `gorm:"column:user_role_in_trip"`
}

// TripRepository persists trips.
type TripRepository struct{}

func NewTripRepository() *TripRepository {
	return &TripRepository{}
}

func (r *TripRepository) Create(ctx context.Context, db *gorm.DB, trip *models.Trip) error {
	return translate(db.WithContext(ctx).Create(trip).Error)
}

// FindByID returns a non-deleted trip.
func (r *TripRepository) FindByID(ctx context.Context, db *gorm.DB, id string) (*models.Trip, error) {
	var trip models.Trip
	err := db.WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		Take(&trip).Error
	if err != nil {
		return nil, translate(err)
	}
	return &trip, nil
}

// ListForUser returns the trips the user actively belongs to, newest start date first,
// together with the total number of matches before pagination.
func (r *TripRepository) ListForUser(ctx context.Context, db *gorm.DB, userID string, filter TripFilter, page Page) ([]TripWithRole, int64, error) {
	query := db.WithContext(ctx).
		Model(&models.Trip{}).
		Joins("JOIN trip_members ON trip_members.trip_id = trips.id").
		Where("trip_members.user_id = ?", userID).
		Where("trip_members.deleted = ? AND trip_members.status = ?", false, models.MemberStatusActive).
		Where("trips.deleted = ?", false)

	if filter.Status != 0 {
		query = query.Where("trips.status = ?", filter.Status)
	}
	if filter.Role != 0 {
		query = query.Where("trip_members.role = ?", filter.Role)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []TripWithRole{}, 0, nil
	}

	var rows []TripWithRole
	err := query.
		Select("trips.*, trip_members.role AS user_role_in_trip").
		Order("trips.start_date DESC").
		Order("trips.created_at DESC").
		Offset(page.offset()).
		Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Update writes only the supplied columns.
func (r *TripRepository) Update(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	result := db.WithContext(ctx).
		Model(&models.Trip{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus writes the status column alone so concurrent field edits are never overwritten.
func (r *TripRepository) UpdateStatus(ctx context.Context, db *gorm.DB, id string, status models.TripStatus, now time.Time) error {
	return db.WithContext(ctx).
		Model(&models.Trip{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":     status,
			"updated_at": now,
		}).Error
}

func (r *TripRepository) SoftDelete(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	result := db.WithContext(ctx).
		Model(&models.Trip{}).
		Where("id = ? AND deleted = ?", id, false).
		UpdateColumns(map[string]any{
			"deleted":    true,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReconcilable returns a batch of live, non-cancelled trips ordered by id,
// starting after afterID. The maintenance sweep pages through it.
func (r *TripRepository) ListReconcilable(ctx context.Context, db *gorm.DB, afterID string, limit int) ([]models.Trip, error) {
	var trips []models.Trip
	err := db.WithContext(ctx).
		Where("deleted = ? AND status <> ?", false, models.TripStatusCancelled).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&trips).Error
	return trips, err
}
