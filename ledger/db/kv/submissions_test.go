package kv

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/hashutil"
)

func testSubmission(submitter types.Principal, jobID string) *types.Submission {
	return &types.Submission{
		UID:         hashutil.Hash([]byte(jobID + string(submitter))),
		Submitter:   submitter,
		JobID:       jobID,
		Namespace:   "nweb.io",
		DatasetType: "quick-scan",
		CID:         "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		Timestamp:   1000,
	}
}

func TestStore_SaveSubmissionRequiresQuota(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	err := db.SaveSubmission(ctx, testSubmission("0xaa", "job-1"), 1)
	require.True(t, errors.Is(err, types.ErrInsufficientQuota), "unstaked submitter has zero quota")
}

func TestStore_SaveSubmissionRoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	// 400 staked at minimum 100 grants a quota of 2.
	_, err := db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)

	sub := testSubmission("0xaa", "job-1")
	require.NoError(t, db.SaveSubmission(ctx, sub, 1))

	got, err := db.Submission(ctx, sub.UID)
	require.NoError(t, err)
	require.Equal(t, sub, got)

	byJob, err := db.SubmissionByJobID(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, sub.UID, byJob.UID)

	err = db.SaveSubmission(ctx, sub, 1)
	require.True(t, errors.Is(err, types.ErrDuplicateSubmission))
}

func TestStore_SaveSubmissionQuotaCostGate(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)

	err = db.SaveSubmission(ctx, testSubmission("0xaa", "job-full"), 5)
	require.True(t, errors.Is(err, types.ErrInsufficientQuota), "cost 5 exceeds quota 2")
	require.NoError(t, db.SaveSubmission(ctx, testSubmission("0xaa", "job-quick"), 2))
}

func TestStore_SaveSubmissionSeesWithdrawnStake(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)
	_, err = db.WithdrawStake(ctx, "0xaa", 350, 600)
	require.NoError(t, err)

	err = db.SaveSubmission(ctx, testSubmission("0xaa", "job-1"), 1)
	require.True(t, errors.Is(err, types.ErrInsufficientQuota), "quota gate must read the live balance")
}

func TestStore_SubmitterSubmissions(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.DepositStake(ctx, "0xaa", 10000, 500)
	require.NoError(t, err)
	_, err = db.DepositStake(ctx, "0xbb", 10000, 500)
	require.NoError(t, err)

	require.NoError(t, db.SaveSubmission(ctx, testSubmission("0xaa", "job-1"), 1))
	require.NoError(t, db.SaveSubmission(ctx, testSubmission("0xaa", "job-2"), 1))
	require.NoError(t, db.SaveSubmission(ctx, testSubmission("0xbb", "job-3"), 1))

	mine, err := db.SubmitterSubmissions(ctx, "0xaa")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, sub := range mine {
		require.Equal(t, types.Principal("0xaa"), sub.Submitter)
	}

	all, err := db.AllSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
