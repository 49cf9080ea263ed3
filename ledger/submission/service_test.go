package submission

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/pierce403/nweb-next/ledger/db/kv"
	"github.com/pierce403/nweb-next/ledger/feed"
	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/hashutil"
)

const operator = types.Principal("0x0perator")

type testEnv struct {
	srv  *Service
	db   *kv.Store
	feed *event.Feed
}

func setupEnv(t *testing.T) *testEnv {
	db, err := kv.NewKVStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	scanSchema := &types.Schema{
		UID:        types.SchemaUID("nweb scan submission", "", false),
		Definition: "nweb scan submission",
	}
	require.NoError(t, db.SaveSchema(context.Background(), scanSchema))
	f := new(event.Feed)
	srv := New(context.Background(), &ServiceConfig{
		Database:      db,
		Feed:          f,
		ScanSchemaUID: scanSchema.UID,
		Operator:      operator,
		Now:           func() time.Time { return time.Unix(1700000000, 0) },
	})
	return &testEnv{srv: srv, db: db, feed: f}
}

// attest stores a scan submission attestation and returns its uid and the
// payload hash the submitter would present.
func (e *testEnv) attest(t *testing.T, attester types.Principal, payload *types.SubmissionPayload) (types.UID, [32]byte) {
	t.Helper()
	data, err := payload.Encode()
	require.NoError(t, err)
	uid, err := e.db.SaveAttestation(context.Background(), &types.Attestation{
		Attester:  attester,
		SchemaUID: e.srv.scanSchemaUID,
		Timestamp: 1700000000,
		Data:      data,
	})
	require.NoError(t, err)
	return uid, hashutil.Hash(data)
}

func scanPayload(submitter types.Principal, jobID string) *types.SubmissionPayload {
	return &types.SubmissionPayload{
		Submitter:   submitter,
		JobID:       jobID,
		Namespace:   "nweb.io",
		DatasetType: "quick-scan",
		CID:         "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		Tool:        "nmap",
		Version:     "7.94",
	}
}

func TestService_SubmitScan(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)

	events := make(chan *feed.Event, 1)
	sub := env.feed.Subscribe(events)
	defer sub.Unsubscribe()

	uid, payloadHash := env.attest(t, "0xaa", scanPayload("0xaa", "job-1"))
	recorded, err := env.srv.SubmitScan(ctx, "0xaa", uid, payloadHash)
	require.NoError(t, err)
	require.Equal(t, uid, recorded.UID)
	require.Equal(t, "job-1", recorded.JobID)
	require.Equal(t, "quick-scan", recorded.DatasetType)

	select {
	case ev := <-events:
		require.Equal(t, feed.SubmissionRecorded, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	got, err := env.srv.ByJobID(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, recorded.UID, got.UID)

	_, err = env.srv.SubmitScan(ctx, "0xaa", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrDuplicateSubmission))
}

func TestService_SubmitScanValidationLadder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)

	_, err = env.srv.SubmitScan(ctx, "0xaa", hashutil.Hash([]byte("missing")), [32]byte{})
	require.True(t, errors.Is(err, types.ErrAttestationNotFound))

	uid, payloadHash := env.attest(t, "0xaa", scanPayload("0xaa", "job-1"))
	_, err = env.srv.SubmitScan(ctx, "0xbb", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrNotAttester))

	_, err = env.srv.SubmitScan(ctx, "0xaa", uid, hashutil.Hash([]byte("tampered")))
	require.True(t, errors.Is(err, types.ErrPayloadHashMismatch))

	otherSchema := &types.Schema{UID: types.SchemaUID("other", "", false), Definition: "other"}
	require.NoError(t, env.db.SaveSchema(ctx, otherSchema))
	data, err := scanPayload("0xaa", "job-2").Encode()
	require.NoError(t, err)
	wrongSchemaUID, err := env.db.SaveAttestation(ctx, &types.Attestation{
		Attester:  "0xaa",
		SchemaUID: otherSchema.UID,
		Data:      data,
	})
	require.NoError(t, err)
	_, err = env.srv.SubmitScan(ctx, "0xaa", wrongSchemaUID, hashutil.Hash(data))
	require.True(t, errors.Is(err, types.ErrWrongSchema))
}

func TestService_SubmitScanRejectsForeignPayload(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)

	// Attested by 0xaa but the payload names a different submitter.
	uid, payloadHash := env.attest(t, "0xaa", scanPayload("0xbb", "job-1"))
	_, err = env.srv.SubmitScan(ctx, "0xaa", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrNotSubmissionOwner))
}

func TestService_SubmitScanRejectsMalformedPayload(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	data := []byte(`{"schema":"nweb/scan-submission/v1"}`)
	uid, err := env.db.SaveAttestation(ctx, &types.Attestation{
		Attester:  "0xaa",
		SchemaUID: env.srv.scanSchemaUID,
		Data:      data,
	})
	require.NoError(t, err)
	_, err = env.srv.SubmitScan(ctx, "0xaa", uid, hashutil.Hash(data))
	require.True(t, errors.Is(err, types.ErrInvalidPayload))
}

func TestService_SubmitScanUnknownDatasetType(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)

	payload := scanPayload("0xaa", "job-1")
	payload.DatasetType = "deep-space-scan"
	uid, payloadHash := env.attest(t, "0xaa", payload)
	_, err = env.srv.SubmitScan(ctx, "0xaa", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrUnknownDatasetType))
}

func TestService_SubmitScanQuotaGate(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	uid, payloadHash := env.attest(t, "0xaa", scanPayload("0xaa", "job-1"))
	_, err := env.srv.SubmitScan(ctx, "0xaa", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrInsufficientQuota), "unstaked submitter must be rejected")
}

func TestService_SubmitScanQuotaIsCapacityNotCounter(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// Stake 400 at reputation 0 yields quota 2, exactly the top-ports cost.
	_, err := env.db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)

	first := scanPayload("0xaa", "job-1")
	first.DatasetType = "top-ports"
	uid, payloadHash := env.attest(t, "0xaa", first)
	_, err = env.srv.SubmitScan(ctx, "0xaa", uid, payloadHash)
	require.NoError(t, err)

	// The first submission does not consume the quota, so a second dataset
	// of the same cost in the same window is admitted too.
	second := scanPayload("0xaa", "job-2")
	second.DatasetType = "top-ports"
	uid2, payloadHash2 := env.attest(t, "0xaa", second)
	recorded, err := env.srv.SubmitScan(ctx, "0xaa", uid2, payloadHash2)
	require.NoError(t, err)
	require.Equal(t, "job-2", recorded.JobID)

	subs, err := env.srv.BySubmitter(ctx, "0xaa")
	require.NoError(t, err)
	require.Len(t, subs, 2)
}

func TestService_IsSubmissionValid(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	valid, err := env.srv.IsSubmissionValid(ctx, hashutil.Hash([]byte("missing")))
	require.NoError(t, err, "an unknown uid is not an error")
	require.False(t, valid)

	_, err = env.db.DepositStake(ctx, "0xaa", 400, 500)
	require.NoError(t, err)
	uid, payloadHash := env.attest(t, "0xaa", scanPayload("0xaa", "job-1"))
	_, err = env.srv.SubmitScan(ctx, "0xaa", uid, payloadHash)
	require.NoError(t, err)

	valid, err = env.srv.IsSubmissionValid(ctx, uid)
	require.NoError(t, err)
	require.True(t, valid)

	// Dispute outcomes never flip the answer; validity is an existence
	// check, and challenge state is read off the challenge record.
	ch := &types.Challenge{
		UID:           hashutil.Hash([]byte("challenge-1")),
		JobID:         "job-1",
		Challenger:    "0xcc",
		GraceDeadline: 5000,
	}
	require.NoError(t, env.db.SaveChallenge(ctx, ch))
	_, _, err = env.db.ResolveChallengeByTimeout(ctx, ch.UID, "0xaa", 5000)
	require.NoError(t, err)
	valid, err = env.srv.IsSubmissionValid(ctx, uid)
	require.NoError(t, err)
	require.True(t, valid, "a slashed challenge does not erase the record")
}

func TestService_SetDatasetCost(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	err := env.srv.SetDatasetCost(ctx, "0xintruder", "quick-scan", 9)
	require.True(t, errors.Is(err, types.ErrNotOperator))

	require.NoError(t, env.srv.SetDatasetCost(ctx, operator, "udp-scan", 3))
	costs, err := env.srv.DatasetCosts(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), costs["udp-scan"])
}
