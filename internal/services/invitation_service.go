package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/permissions"
	"github.com/tripbill/tripbill/internal/repository"
	"github.com/tripbill/tripbill/pkg/crypto"
	apperrors "github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/logger"
	"github.com/tripbill/tripbill/pkg/metrics"
)

const (
	defaultInvitationExpiry     = 24 * time.Hour
	defaultInvitationMaxUses    = 1
	defaultInvitationTokenBytes = 32
	defaultQRCodeSize           = 256
	defaultInvitationBaseURL    = "http://localhost:8000"

	// JoinPath is where invitation links point to.
	JoinPath = "/api/v1/trips/join-trip"
)

// CreateInvitationInput describes a new invitation token. Nil fields take the configured defaults.
type CreateInvitationInput struct {
	ExpiresInMinutes *int
	MaxUses          *int
	RoleToAssign     *models.TripRole
}

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL sets the public URL prefix used in join links.
func WithInvitationBaseURL(baseURL string) InvitationOption {
	return func(s *InvitationService) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// WithInvitationExpiry overrides the default token lifetime.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInvitationMaxUses overrides the default number of redemptions.
func WithInvitationMaxUses(n int) InvitationOption {
	return func(s *InvitationService) {
		if n > 0 {
			s.maxUses = n
		}
	}
}

// WithInvitationTokenSize adjusts the random token length in bytes.
func WithInvitationTokenSize(size int) InvitationOption {
	return func(s *InvitationService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithInvitationQRSize sets the edge length in pixels of generated QR codes.
func WithInvitationQRSize(size int) InvitationOption {
	return func(s *InvitationService) {
		if size > 0 {
			s.qrSize = size
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService issues invitation tokens and redeems them into memberships.
type InvitationService struct {
	db          *gorm.DB
	access      *permissions.TripAccess
	trips       *repository.TripRepository
	members     *repository.MemberRepository
	invitations *repository.InvitationRepository
	baseURL     string
	expiry      time.Duration
	maxUses     int
	tokenLength int
	qrSize      int
	now         func() time.Time
	log         *zap.Logger
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(db *gorm.DB, access *permissions.TripAccess, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if access == nil {
		return nil, errors.New("invitation service: access evaluator is required")
	}

	service := &InvitationService{
		db:          db,
		access:      access,
		trips:       repository.NewTripRepository(),
		members:     repository.NewMemberRepository(),
		invitations: repository.NewInvitationRepository(),
		baseURL:     defaultInvitationBaseURL,
		expiry:      defaultInvitationExpiry,
		maxUses:     defaultInvitationMaxUses,
		tokenLength: defaultInvitationTokenBytes,
		qrSize:      defaultQRCodeSize,
		now:         time.Now,
		log:         logger.WithModule("invitations"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create issues an invitation token for a trip that still accepts members.
// Any active member may invite.
func (s *InvitationService) Create(ctx context.Context, userID, tripID string, input CreateInvitationInput) (*InvitationTokenView, error) {
	ctx = ensureContext(ctx)

	grant, err := s.access.Authorize(ctx, userID, tripID, permissions.ActionInvite)
	if err != nil {
		return nil, err
	}

	expiry := s.expiry
	if input.ExpiresInMinutes != nil {
		if *input.ExpiresInMinutes <= 0 {
			return nil, apperrors.NewBadRequest("expires_in_minutes must be a positive integer")
		}
		expiry = time.Duration(*input.ExpiresInMinutes) * time.Minute
	}

	maxUses := s.maxUses
	if input.MaxUses != nil {
		if *input.MaxUses <= 0 {
			return nil, apperrors.NewBadRequest("max_uses must be a positive integer")
		}
		maxUses = *input.MaxUses
	}

	role := models.TripRoleMember
	if input.RoleToAssign != nil {
		role = *input.RoleToAssign
	}
	switch role {
	case models.TripRoleOwner:
		return nil, ErrInvitationOwnerRole
	case models.TripRoleAdmin, models.TripRoleEditor, models.TripRoleMember:
	default:
		return nil, apperrors.NewBadRequest("role_to_assign must be one of 2, 3, 4")
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	expiresAt := s.now().Add(expiry)
	invitation := &models.TripInvitation{
		TripID:          grant.Trip.ID,
		TokenHash:       tokenHash(token),
		CreatedByUserID: userID,
		ExpiresAt:       &expiresAt,
		MaxUses:         &maxUses,
		RoleToAssign:    role,
		IsActive:        true,
	}
	if err := s.invitations.Create(ctx, s.db, invitation); err != nil {
		return nil, fmt.Errorf("invitation service: create invitation: %w", err)
	}

	link := s.joinLink(token)
	qr, err := s.qrCodeData(link)
	if err != nil {
		return nil, fmt.Errorf("invitation service: render qr code: %w", err)
	}

	s.log.Info("invitation created",
		zap.String("invitation_id", invitation.ID),
		zap.String("trip_id", invitation.TripID),
		zap.String("created_by", userID),
		zap.Int("max_uses", maxUses),
		zap.Time("expires_at", expiresAt),
	)

	return &InvitationTokenView{
		InvitationID: invitation.ID,
		InviteToken:  token,
		JoinLink:     link,
		QRCodeData:   qr,
		ExpiresAt:    &expiresAt,
		MaxUses:      &maxUses,
		RoleToAssign: role,
	}, nil
}

// Redeem joins the user to the invitation's trip. The membership and the use
// count change together or not at all.
func (s *InvitationService) Redeem(ctx context.Context, userID, token string) (member *MemberView, err error) {
	ctx = ensureContext(ctx)
	defer func() {
		metrics.InvitationRedemptions.WithLabelValues(redemptionResult(err)).Inc()
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewBadRequest("token is required")
	}

	now := s.now()
	var (
		joined     models.TripMember
		invitation *models.TripInvitation
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invitation, err = s.invitations.FindUsableByToken(ctx, tx, tokenHash(token), now, true)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvitationNotFound
			}
			return fmt.Errorf("load invitation: %w", err)
		}

		if _, err := s.trips.FindByID(ctx, tx, invitation.TripID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvitationNotFound
			}
			return fmt.Errorf("load trip: %w", err)
		}

		_, err = s.members.Find(ctx, tx, invitation.TripID, userID)
		switch {
		case err == nil:
			return ErrAlreadyTripMember
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("load membership: %w", err)
		}

		joined = models.TripMember{
			TripID:   invitation.TripID,
			UserID:   userID,
			Role:     invitation.RoleToAssign,
			Status:   models.MemberStatusActive,
			JoinedAt: &now,
		}
		if err := s.members.Upsert(ctx, tx, &joined, now); err != nil {
			if repository.IsUniqueConstraintError(err) {
				return ErrAlreadyTripMember.WithInternal(err)
			}
			return fmt.Errorf("create membership: %w", err)
		}

		consumed, err := s.invitations.ConsumeUse(ctx, tx, invitation.ID, now)
		if err != nil {
			return fmt.Errorf("consume invitation: %w", err)
		}
		if !consumed {
			return ErrInvitationNotFound
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("invitation service: redeem: %w", err)
	}

	s.log.Info("invitation redeemed",
		zap.String("invitation_id", invitation.ID),
		zap.String("trip_id", joined.TripID),
		zap.String("user_id", userID),
		zap.Stringer("role", joined.Role),
	)

	view := newMemberView(&joined)
	return &view, nil
}

// Revoke deactivates an invitation of the trip. Owners and admins only.
func (s *InvitationService) Revoke(ctx context.Context, userID, tripID, invitationID string) error {
	ctx = ensureContext(ctx)

	grant, err := s.access.Authorize(ctx, userID, tripID, permissions.ActionUpdate)
	if err != nil {
		return err
	}

	invitation, err := s.invitations.FindByID(ctx, s.db, invitationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvitationNotFound
		}
		return fmt.Errorf("invitation service: load invitation: %w", err)
	}
	if invitation.TripID != grant.Trip.ID || invitation.Deleted {
		return ErrInvitationNotFound
	}

	if err := s.invitations.Deactivate(ctx, s.db, invitation.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvitationNotFound
		}
		return fmt.Errorf("invitation service: revoke invitation: %w", err)
	}

	s.log.Info("invitation revoked",
		zap.String("invitation_id", invitation.ID),
		zap.String("trip_id", invitation.TripID),
		zap.String("user_id", userID),
	)
	return nil
}

func (s *InvitationService) joinLink(token string) string {
	return s.baseURL + JoinPath + "?token=" + url.QueryEscape(token)
}

func (s *InvitationService) qrCodeData(link string) (string, error) {
	png, err := qrcode.Encode(link, qrcode.Medium, s.qrSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func tokenHash(token string) string {
	checksum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(checksum[:])
}

func redemptionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvitationNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyTripMember):
		return "conflict"
	case errors.Is(err, apperrors.ErrBadRequest):
		return "invalid"
	default:
		return "error"
	}
}
