package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/internal/models"
	apperrors "github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/logger"
)

const defaultPrincipalTTL = time.Minute

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// PrincipalResolver turns a token's user id into a Principal, rejecting
// unknown and deactivated users. Lookups are cached briefly when a store is set.
type PrincipalResolver struct {
	db    *gorm.DB
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// PrincipalOption customises a PrincipalResolver.
type PrincipalOption func(*PrincipalResolver)

// WithPrincipalCache caches resolved principals in store for ttl.
func WithPrincipalCache(store cache.Store, ttl time.Duration) PrincipalOption {
	return func(r *PrincipalResolver) {
		r.store = store
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewPrincipalResolver constructs a PrincipalResolver.
func NewPrincipalResolver(db *gorm.DB, opts ...PrincipalOption) (*PrincipalResolver, error) {
	if db == nil {
		return nil, errors.New("principal resolver: db is required")
	}
	resolver := &PrincipalResolver{
		db:  db,
		ttl: defaultPrincipalTTL,
		log: logger.WithModule("auth"),
	}
	for _, opt := range opts {
		opt(resolver)
	}
	return resolver, nil
}

// Resolve returns the active user behind userID or ErrUnauthorized.
func (r *PrincipalResolver) Resolve(ctx context.Context, userID string) (*Principal, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if principal, ok := r.cached(ctx, userID); ok {
		return principal, nil
	}

	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("principal resolver: load user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrUnauthorized.WithMessage("User account is disabled")
	}

	principal := &Principal{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}
	r.remember(ctx, principal)
	return principal, nil
}

func (r *PrincipalResolver) cached(ctx context.Context, userID string) (*Principal, bool) {
	if r.store == nil {
		return nil, false
	}
	data, found, err := r.store.Get(ctx, principalKey(userID))
	if err != nil {
		r.log.Warn("principal cache read failed", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var principal Principal
	if err := json.Unmarshal(data, &principal); err != nil {
		return nil, false
	}
	return &principal, true
}

func (r *PrincipalResolver) remember(ctx context.Context, principal *Principal) {
	if r.store == nil {
		return
	}
	payload, err := json.Marshal(principal)
	if err != nil {
		return
	}
	if err := r.store.Set(ctx, principalKey(principal.UserID), payload, r.ttl); err != nil {
		r.log.Warn("principal cache write failed", zap.String("user_id", principal.UserID), zap.Error(err))
	}
}

func principalKey(userID string) string {
	return cache.Key("auth", "principal", userID)
}
