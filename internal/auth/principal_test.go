package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/internal/database/testutil"
	"github.com/tripbill/tripbill/internal/models"
	apperrors "github.com/tripbill/tripbill/pkg/errors"
)

func TestPrincipalResolverResolve(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "ana")

	resolver, err := NewPrincipalResolver(db)
	require.NoError(t, err)

	principal, err := resolver.Resolve(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, principal.UserID)
	require.Equal(t, "ana", principal.Username)

	_, err = resolver.Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestPrincipalResolverRejectsInactiveUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "gone")
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	resolver, err := NewPrincipalResolver(db)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), user.ID)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestPrincipalResolverUsesCache(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "cached")
	store := cache.NewDatabaseStore(db)

	resolver, err := NewPrincipalResolver(db, WithPrincipalCache(store, time.Hour))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), user.ID)
	require.NoError(t, err)

	_, found, err := store.Get(context.Background(), principalKey(user.ID))
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	principal, err := resolver.Resolve(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, principal.UserID)

	require.NoError(t, store.Delete(context.Background(), principalKey(user.ID)))
	_, err = resolver.Resolve(context.Background(), user.ID)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
