package challenge

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

type testEnv struct {
	srv  *Service
	db   *kv.Store
	feed *event.Feed
	// nowSec drives the service clock.
	nowSec uint64
}

func setupEnv(t *testing.T) *testEnv {
	db, err := kv.NewKVStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	ctx := context.Background()
	challengeSchema := &types.Schema{UID: types.SchemaUID("nweb challenge", "", false), Definition: "nweb challenge"}
	resolutionSchema := &types.Schema{UID: types.SchemaUID("nweb challenge resolution", "", false), Definition: "nweb challenge resolution"}
	require.NoError(t, db.SaveSchema(ctx, challengeSchema))
	require.NoError(t, db.SaveSchema(ctx, resolutionSchema))

	env := &testEnv{db: db, feed: new(event.Feed), nowSec: 1700000000}
	env.srv = New(ctx, &ServiceConfig{
		Database:            db,
		Feed:                env.feed,
		ChallengeSchemaUID:  challengeSchema.UID,
		ResolutionSchemaUID: resolutionSchema.UID,
		Now:                 func() time.Time { return time.Unix(int64(env.nowSec), 0) },
	})
	return env
}

// recordSubmission stakes the submitter and records a submission under jobID.
func (e *testEnv) recordSubmission(t *testing.T, submitter types.Principal, jobID string) *types.Submission {
	t.Helper()
	ctx := context.Background()
	if entry, err := e.db.StakeInfo(ctx, submitter); err == nil && entry == nil {
		_, err := e.db.DepositStake(ctx, submitter, 400, e.nowSec)
		require.NoError(t, err)
	}
	sub := &types.Submission{
		UID:         hashutil.Hash([]byte("sub-" + jobID)),
		Submitter:   submitter,
		JobID:       jobID,
		DatasetType: "quick-scan",
		CID:         "bafysubmissioncid",
		Timestamp:   e.nowSec,
	}
	require.NoError(t, e.db.SaveSubmission(ctx, sub, 1))
	return sub
}

// attest stores an attestation under the given schema and returns its uid and
// payload hash.
func (e *testEnv) attest(t *testing.T, attester types.Principal, schemaUID types.UID, data []byte) (types.UID, [32]byte) {
	t.Helper()
	uid, err := e.db.SaveAttestation(context.Background(), &types.Attestation{
		Attester:  attester,
		SchemaUID: schemaUID,
		Timestamp: e.nowSec,
		Data:      data,
	})
	require.NoError(t, err)
	return uid, hashutil.Hash(data)
}

func (e *testEnv) fileChallenge(t *testing.T, challenger types.Principal, jobID string) *types.Challenge {
	t.Helper()
	data, err := (&types.ChallengePayload{
		JobID:  jobID,
		CID:    "bafysubmissioncid",
		Reason: "CONTENT_UNAVAILABLE",
	}).Encode()
	require.NoError(t, err)
	uid, payloadHash := e.attest(t, challenger, e.srv.challengeSchemaUID, data)
	ch, err := e.srv.FileChallenge(context.Background(), challenger, uid, payloadHash)
	require.NoError(t, err)
	return ch
}

func TestService_FileChallenge(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.recordSubmission(t, "0xaa", "job-1")

	events := make(chan *feed.Event, 1)
	sub := env.feed.Subscribe(events)
	defer sub.Unsubscribe()

	ch := env.fileChallenge(t, "0xcc", "job-1")
	require.Equal(t, "job-1", ch.JobID)
	require.Equal(t, types.ContentUnavailable, ch.Reason)
	require.Equal(t, env.nowSec+env.srv.cfg.GracePeriodSeconds, ch.GraceDeadline)

	select {
	case ev := <-events:
		require.Equal(t, feed.ChallengeFiled, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	got, err := env.srv.ByJobID(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, ch.UID, got.UID)
}

func TestService_FileChallengeRequiresSubmission(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	data, err := (&types.ChallengePayload{JobID: "ghost-job", CID: "bafy", Reason: "HASH_MISMATCH"}).Encode()
	require.NoError(t, err)
	uid, payloadHash := env.attest(t, "0xcc", env.srv.challengeSchemaUID, data)
	_, err = env.srv.FileChallenge(ctx, "0xcc", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrSubmissionNotFound))
}

func TestService_FileChallengeOncePerJob(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.recordSubmission(t, "0xaa", "job-1")
	env.fileChallenge(t, "0xcc", "job-1")

	data, err := (&types.ChallengePayload{JobID: "job-1", CID: "bafy", Reason: "FORMAT_INVALID"}).Encode()
	require.NoError(t, err)
	uid, payloadHash := env.attest(t, "0xdd", env.srv.challengeSchemaUID, data)
	_, err = env.srv.FileChallenge(ctx, "0xdd", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrAlreadyChallenged))
}

func TestService_ResolveOwnerOnly(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.recordSubmission(t, "0xaa", "job-1")
	ch := env.fileChallenge(t, "0xcc", "job-1")

	data, err := (&types.ResolutionPayload{ChallengeUID: ch.UID, ReplacementCID: "bafynewcid"}).Encode()
	require.NoError(t, err)
	uid, payloadHash := env.attest(t, "0xbb", env.srv.resolutionSchemaUID, data)
	_, err = env.srv.Resolve(ctx, "0xbb", uid, payloadHash)
	require.True(t, errors.Is(err, types.ErrNotSubmissionOwner))
}

func TestService_ResolveWithinGrace(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.recordSubmission(t, "0xaa", "job-1")
	ch := env.fileChallenge(t, "0xcc", "job-1")

	data, err := (&types.ResolutionPayload{
		ChallengeUID:   ch.UID,
		Notes:          "bundle repinned to a healthy node",
		ReplacementCID: "bafynewcid",
	}).Encode()
	require.NoError(t, err)
	uid, payloadHash := env.attest(t, "0xaa", env.srv.resolutionSchemaUID, data)
	resolved, err := env.srv.Resolve(ctx, "0xaa", uid, payloadHash)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.False(t, resolved.Slash)
	require.Equal(t, "bafynewcid", resolved.ReplacementCID)

	// Submitter resolution moves no stake.
	entry, err := env.db.StakeInfo(ctx, "0xaa")
	require.NoError(t, err)
	require.Equal(t, uint64(400), entry.Amount)

	_, _, err = env.srv.ProcessTimeout(ctx, ch.UID)
	require.True(t, errors.Is(err, types.ErrAlreadyResolved))
}

func TestService_ProcessTimeout(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.recordSubmission(t, "0xaa", "job-1")
	ch := env.fileChallenge(t, "0xcc", "job-1")

	ok, err := env.srv.CanProcessTimeout(ctx, ch.UID)
	require.NoError(t, err)
	require.False(t, ok, "still inside the grace period")
	_, _, err = env.srv.ProcessTimeout(ctx, ch.UID)
	require.True(t, errors.Is(err, types.ErrGracePeriodActive))

	env.nowSec = ch.GraceDeadline
	ok, err = env.srv.CanProcessTimeout(ctx, ch.UID)
	require.NoError(t, err)
	require.True(t, ok)

	events := make(chan *feed.Event, 2)
	sub := env.feed.Subscribe(events)
	defer sub.Unsubscribe()

	resolved, result, err := env.srv.ProcessTimeout(ctx, ch.UID)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.True(t, resolved.Slash)
	require.Equal(t, uint64(40), result.SlashAmount)
	require.Equal(t, uint64(20), result.Bounty)

	for _, want := range []feed.EventType{feed.Slashed, feed.ChallengeResolved} {
		select {
		case ev := <-events:
			require.Equal(t, want, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("no event received")
		}
	}

	entry, err := env.db.StakeInfo(ctx, "0xaa")
	require.NoError(t, err)
	require.Equal(t, uint64(360), entry.Amount)

	bounties, err := env.srv.PendingBounties(ctx)
	require.NoError(t, err)
	require.Len(t, bounties, 1)
	require.Equal(t, types.Principal("0xcc"), bounties[0].Challenger)
}
