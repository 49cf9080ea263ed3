package kv

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/pierce403/nweb-next/ledger/types"
)

func TestStore_SchemaNilForUnknown(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	schema, err := db.Schema(ctx, types.SchemaUID("never registered", "", false))
	require.NoError(t, err)
	require.Nil(t, schema)
}

func TestStore_SaveSchemaRoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	schema := &types.Schema{
		UID:        types.SchemaUID("string jobId,string cid", "", true),
		Definition: "string jobId,string cid",
		Revocable:  true,
		CreatedAt:  1000,
	}
	require.NoError(t, db.SaveSchema(ctx, schema))

	got, err := db.Schema(ctx, schema.UID)
	require.NoError(t, err)
	require.Equal(t, schema, got)
}

func TestStore_SaveSchemaRejectsDuplicate(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	schema := &types.Schema{
		UID:        types.SchemaUID("string jobId", "", false),
		Definition: "string jobId",
	}
	require.NoError(t, db.SaveSchema(ctx, schema))

	err := db.SaveSchema(ctx, schema)
	require.True(t, errors.Is(err, types.ErrDuplicateSchema))
}
