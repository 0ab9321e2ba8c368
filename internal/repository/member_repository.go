package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tripbill/tripbill/internal/models"
)

// MemberRepository persists trip memberships.
type MemberRepository struct{}

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{}
}

// Find returns the non-deleted membership for (trip, user) regardless of its status.
func (r *MemberRepository) Find(ctx context.Context, db *gorm.DB, tripID, userID string) (*models.TripMember, error) {
	var member models.TripMember
	err := db.WithContext(ctx).
		Where("trip_id = ? AND user_id = ? AND deleted = ?", tripID, userID, false).
		Take(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

// ListByTrip returns the non-deleted memberships of a trip, oldest first.
func (r *MemberRepository) ListByTrip(ctx context.Context, db *gorm.DB, tripID string, status models.MemberStatus) ([]models.TripMember, error) {
	query := db.WithContext(ctx).
		Preload("User").
		Where("trip_id = ? AND deleted = ?", tripID, false)
	if status != 0 {
		query = query.Where("status = ?", status)
	}

	var members []models.TripMember
	if err := query.Order("created_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// Upsert creates the membership or reactivates the existing (trip, user) row,
// overwriting role and status. JoinedAt is set the first time the membership
// becomes active and is kept afterwards.
func (r *MemberRepository) Upsert(ctx context.Context, db *gorm.DB, member *models.TripMember, now time.Time) error {
	var existing models.TripMember
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trip_id = ? AND user_id = ?", member.TripID, member.UserID).
		Take(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if member.Status == models.MemberStatusActive && member.JoinedAt == nil {
			member.JoinedAt = &now
		}
		return translate(db.WithContext(ctx).Create(member).Error)
	case err != nil:
		return err
	}

	updates := map[string]any{
		"role":       member.Role,
		"status":     member.Status,
		"deleted":    false,
		"updated_at": now,
	}
	joinedAt := existing.JoinedAt
	if existing.Deleted {
		joinedAt = nil
	}
	if member.Status == models.MemberStatusActive && joinedAt == nil {
		joinedAt = &now
	}
	updates["joined_at"] = joinedAt

	if err := db.WithContext(ctx).
		Model(&models.TripMember{}).
		Where("id = ?", existing.ID).
		UpdateColumns(updates).Error; err != nil {
		return err
	}

	existing.Role = member.Role
	existing.Status = member.Status
	existing.Deleted = false
	existing.JoinedAt = joinedAt
	existing.UpdatedAt = now
	*member = existing
	return nil
}

func (r *MemberRepository) UpdateRole(ctx context.Context, db *gorm.DB, tripID, userID string, role models.TripRole, now time.Time) error {
	return r.updateLive(ctx, db, tripID, userID, map[string]any{"role": role, "updated_at": now})
}

// UpdateStatus changes a membership's status, stamping joined_at on first activation.
func (r *MemberRepository) UpdateStatus(ctx context.Context, db *gorm.DB, tripID, userID string, status models.MemberStatus, now time.Time) error {
	updates := map[string]any{"status": status, "updated_at": now}
	if status == models.MemberStatusActive {
		updates["joined_at"] = gorm.Expr("COALESCE(joined_at, ?)", now)
	}
	return r.updateLive(ctx, db, tripID, userID, updates)
}

func (r *MemberRepository) SoftDelete(ctx context.Context, db *gorm.DB, tripID, userID string, now time.Time) error {
	return r.updateLive(ctx, db, tripID, userID, map[string]any{"deleted": true, "updated_at": now})
}

// SoftDeleteByTrip flags every live membership of a trip as deleted.
func (r *MemberRepository) SoftDeleteByTrip(ctx context.Context, db *gorm.DB, tripID string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&models.TripMember{}).
		Where("trip_id = ? AND deleted = ?", tripID, false).
		UpdateColumns(map[string]any{"deleted": true, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *MemberRepository) updateLive(ctx context.Context, db *gorm.DB, tripID, userID string, updates map[string]any) error {
	result := db.WithContext(ctx).
		Model(&models.TripMember{}).
		Where("trip_id = ? AND user_id = ? AND deleted = ?", tripID, userID, false).
		UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
