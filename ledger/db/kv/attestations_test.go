package kv

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/pierce403/nweb-next/ledger/types"
)

func registerSchema(t *testing.T, db *Store, definition string, revocable bool) types.UID {
	t.Helper()
	schema := &types.Schema{
		UID:        types.SchemaUID(definition, "", revocable),
		Definition: definition,
		Revocable:  revocable,
	}
	require.NoError(t, db.SaveSchema(context.Background(), schema))
	return schema.UID
}

func TestStore_SaveAttestationAssignsUID(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	schemaUID := registerSchema(t, db, "bytes payload", true)

	att := &types.Attestation{
		Attester:  "0xaa",
		Subject:   "0xbb",
		SchemaUID: schemaUID,
		Timestamp: 1000,
		Data:      []byte(`{"hello":"world"}`),
	}
	uid, err := db.SaveAttestation(ctx, att)
	require.NoError(t, err)
	require.False(t, uid.IsZero())
	require.Equal(t, uid, att.UID)

	got, err := db.Attestation(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, att, got)
}

func TestStore_SaveAttestationIdenticalInputsGetDistinctUIDs(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	schemaUID := registerSchema(t, db, "bytes payload", true)

	att1 := &types.Attestation{Attester: "0xaa", SchemaUID: schemaUID, Timestamp: 1000, Data: []byte("same")}
	att2 := &types.Attestation{Attester: "0xaa", SchemaUID: schemaUID, Timestamp: 1000, Data: []byte("same")}
	uid1, err := db.SaveAttestation(ctx, att1)
	require.NoError(t, err)
	uid2, err := db.SaveAttestation(ctx, att2)
	require.NoError(t, err)
	require.NotEqual(t, uid1, uid2)
}

func TestStore_RevokeAttestation(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	schemaUID := registerSchema(t, db, "bytes payload", true)

	att := &types.Attestation{Attester: "0xaa", SchemaUID: schemaUID, Timestamp: 1000, Data: []byte("x")}
	uid, err := db.SaveAttestation(ctx, att)
	require.NoError(t, err)

	_, err = db.RevokeAttestation(ctx, "0xaa", types.SchemaUID("missing", "", false))
	require.True(t, errors.Is(err, types.ErrAttestationNotFound))

	_, err = db.RevokeAttestation(ctx, "0xcc", uid)
	require.True(t, errors.Is(err, types.ErrNotAttester))

	revoked, err := db.RevokeAttestation(ctx, "0xaa", uid)
	require.NoError(t, err)
	require.True(t, revoked.Revoked)

	got, err := db.Attestation(ctx, uid)
	require.NoError(t, err)
	require.True(t, got.Revoked)

	_, err = db.RevokeAttestation(ctx, "0xaa", uid)
	require.True(t, errors.Is(err, types.ErrAlreadyRevoked))
}

func TestStore_RevokeAttestationNonRevocableSchema(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	schemaUID := registerSchema(t, db, "bytes payload", false)

	att := &types.Attestation{Attester: "0xaa", SchemaUID: schemaUID, Timestamp: 1000, Data: []byte("x")}
	uid, err := db.SaveAttestation(ctx, att)
	require.NoError(t, err)

	_, err = db.RevokeAttestation(ctx, "0xaa", uid)
	require.True(t, errors.Is(err, types.ErrNotRevocable))
}
