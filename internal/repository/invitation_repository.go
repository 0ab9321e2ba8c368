package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tripbill/tripbill/internal/models"
)

// InvitationRepository persists trip invitation tokens.
type InvitationRepository struct{}

func NewInvitationRepository() *InvitationRepository {
	return &InvitationRepository{}
}

func (r *InvitationRepository) Create(ctx context.Context, db *gorm.DB, invitation *models.TripInvitation) error {
	return translate(db.WithContext(ctx).Create(invitation).Error)
}

// FindUsableByToken returns the invitation whose token hashes to tokenHash,
// only if it can still be redeemed at now. With lock set the row is held until the transaction ends.
func (r *InvitationRepository) FindUsableByToken(ctx context.Context, db *gorm.DB, tokenHash string, now time.Time, lock bool) (*models.TripInvitation, error) {
	query := db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var invitation models.TripInvitation
	err := query.
		Where("token_hash = ?", tokenHash).
		Where("is_active = ? AND deleted = ?", true, false).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("max_uses IS NULL OR current_uses < max_uses").
		Take(&invitation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invitation, nil
}

// ConsumeUse counts one redemption and deactivates the invitation once it
// reaches its limit. The usability check and the increment are one conditional
// statement, so it reports false when a concurrent writer exhausted or revoked
// the invitation first. Call it inside a transaction.
func (r *InvitationRepository) ConsumeUse(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&models.TripInvitation{}).
		Where("id = ? AND is_active = ? AND deleted = ?", id, true, false).
		Where("max_uses IS NULL OR current_uses < max_uses").
		UpdateColumns(map[string]any{
			"current_uses": gorm.Expr("current_uses + 1"),
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}

	err := db.WithContext(ctx).
		Model(&models.TripInvitation{}).
		Where("id = ? AND max_uses IS NOT NULL AND current_uses >= max_uses", id).
		UpdateColumn("is_active", false).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// Deactivate revokes an invitation. It never becomes active again.
func (r *InvitationRepository) Deactivate(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	result := db.WithContext(ctx).
		Model(&models.TripInvitation{}).
		Where("id = ? AND deleted = ?", id, false).
		UpdateColumns(map[string]any{"is_active": false, "updated_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteByTrip flags and deactivates every invitation of a trip.
func (r *InvitationRepository) SoftDeleteByTrip(ctx context.Context, db *gorm.DB, tripID string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&models.TripInvitation{}).
		Where("trip_id = ? AND deleted = ?", tripID, false).
		UpdateColumns(map[string]any{"deleted": true, "is_active": false, "updated_at": now})
	return result.RowsAffected, result.Error
}

// FindByID returns an invitation regardless of usability.
func (r *InvitationRepository) FindByID(ctx context.Context, db *gorm.DB, id string) (*models.TripInvitation, error) {
	var invitation models.TripInvitation
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&invitation).Error; err != nil {
		return nil, translate(err)
	}
	return &invitation, nil
}

// DeactivateExpired switches off live invitations that expired or ran out of uses before now.
func (r *InvitationRepository) DeactivateExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&models.TripInvitation{}).
		Where("is_active = ? AND deleted = ?", true, false).
		Where("(expires_at IS NOT NULL AND expires_at <= ?) OR (max_uses IS NOT NULL AND current_uses >= max_uses)", now).
		UpdateColumns(map[string]any{"is_active": false, "updated_at": now})
	return result.RowsAffected, result.Error
}
