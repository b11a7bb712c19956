package custody

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismgenomics/libprism-go/ledger"
)

func TestEngineGrantWorkflow(t *testing.T) {
	eng, _, _ := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	doctor := newSigner(t)
	key := newKey(t)

	require.NoError(t, eng.RegisterOwner(ctx, owner))
	_, err := eng.Upload(ctx, owner, []byte("genome"), key)
	require.NoError(t, err)

	require.NoError(t, eng.RequestAccess(ctx, doctor, owner.Address()))
	require.NoError(t, eng.ApproveAccess(ctx, owner, doctor.Address()))

	ok, err := eng.CheckAccess(ctx, owner.Address(), doctor.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, eng.RevokeAccess(ctx, owner, doctor.Address()))
	ok, err = eng.CheckAccess(ctx, owner.Address(), doctor.Address())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuditTrailFiltersByOwner(t *testing.T) {
	eng, _, _ := testEngine(t, false)
	ctx := context.Background()

	ownerA := newSigner(t)
	ownerB := newSigner(t)
	key := newKey(t)

	require.NoError(t, eng.RegisterOwner(ctx, ownerA))
	require.NoError(t, eng.RegisterOwner(ctx, ownerB))
	_, err := eng.Upload(ctx, ownerA, []byte("record A"), key)
	require.NoError(t, err)

	all, err := eng.AuditTrail(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := eng.AuditTrail(ctx, ownerA.Address())
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, ledger.EventOwnerRegistered, forA[0].Type)
	assert.Equal(t, ledger.EventDataPublished, forA[1].Type)
	for _, ev := range forA {
		assert.Equal(t, ownerA.Address(), ev.Owner)
	}
}
