package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kycstore/domain"
)

func TestPendingStore_Lifecycle(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewPendingStore(client, 10*time.Minute)
	ctx := context.Background()

	email := &domain.PendingVerification{
		Kind:     domain.VerificationEmail,
		Purpose:  domain.PurposeRegister,
		Address:  "a@b.com",
		IssuedAt: time.Now(),
	}
	require.NoError(t, store.Save(ctx, "c1", email))

	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", loaded.Address)

	phone := &domain.PendingVerification{
		Kind:                   domain.VerificationPhone,
		Purpose:                domain.PurposeLogin,
		E164Number:             "+919876543210",
		DialCode:               "91",
		ProviderVerificationID: "session-info",
	}
	require.NoError(t, store.Save(ctx, "c1", phone))

	loaded, err = store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPhone, loaded.Kind, "a new challenge overwrites the previous one")
	assert.Empty(t, loaded.Address)

	mr.FastForward(11 * time.Minute)
	_, err = store.Load(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrPendingNotFound)
}

func TestPendingStore_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewPendingStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "c1", &domain.PendingVerification{Kind: domain.VerificationEmail}))
	require.NoError(t, store.Delete(ctx, "c1"))

	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrPendingNotFound)
}
