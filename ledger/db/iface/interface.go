// Package iface defines the transactional database contract of the ledger.
// Every mutating method commits as a single serialized transaction; a method
// that returns an error has left the store byte-identical to its pre-call
// state. Plain getters return (nil, nil) for absent records; callers must
// check presence before use.
package iface

import (
	"context"
	"io"

	"github.com/pierce403/nweb-next/ledger/types"
)

// ReadOnlyDatabase represents a read only database with functions that do not modify the DB.
type ReadOnlyDatabase interface {
	// Schema registry and attestation log.
	Schema(ctx context.Context, uid types.UID) (*types.Schema, error)
	Attestation(ctx context.Context, uid types.UID) (*types.Attestation, error)

	// Stake ledger.
	StakeInfo(ctx context.Context, principal types.Principal) (*types.StakeEntry, error)
	BurnedTotal(ctx context.Context) (uint64, error)

	// Submission registry.
	Submission(ctx context.Context, uid types.UID) (*types.Submission, error)
	SubmissionByJobID(ctx context.Context, jobID string) (*types.Submission, error)
	SubmitterSubmissions(ctx context.Context, submitter types.Principal) ([]*types.Submission, error)
	AllSubmissions(ctx context.Context) ([]*types.Submission, error)

	// Challenge coordinator.
	Challenge(ctx context.Context, uid types.UID) (*types.Challenge, error)
	ChallengeByJobID(ctx context.Context, jobID string) (*types.Challenge, error)
	AllChallenges(ctx context.Context) ([]*types.Challenge, error)
	PendingBounties(ctx context.Context) ([]*types.BountyObligation, error)

	// Dataset-type cost table.
	DatasetCost(ctx context.Context, datasetType string) (uint64, bool, error)
	DatasetCosts(ctx context.Context) (map[string]uint64, error)
}

// WriteAccessDatabase represents a write access database with only functions that can modify the DB.
// Each method performs its precondition checks and its writes inside one
// transaction, so check-then-act sequences cannot interleave.
type WriteAccessDatabase interface {
	// Schema registry and attestation log.
	SaveSchema(ctx context.Context, schema *types.Schema) error
	SaveAttestation(ctx context.Context, att *types.Attestation) (types.UID, error)
	RevokeAttestation(ctx context.Context, caller types.Principal, uid types.UID) (*types.Attestation, error)

	// Stake ledger.
	DepositStake(ctx context.Context, principal types.Principal, amount, now uint64) (*types.StakeEntry, error)
	WithdrawStake(ctx context.Context, principal types.Principal, amount, now uint64) (*types.StakeEntry, error)
	SlashStake(ctx context.Context, principal types.Principal, amount, now uint64) (*types.StakeEntry, error)
	UpdateReputation(ctx context.Context, principal types.Principal, delta int64, now uint64) (*types.StakeEntry, error)

	// Submission registry. The quota gate is re-evaluated inside the
	// recording transaction against the live stake entry.
	SaveSubmission(ctx context.Context, sub *types.Submission, cost uint64) error

	// Challenge coordinator.
	SaveChallenge(ctx context.Context, ch *types.Challenge) error
	ResolveChallenge(ctx context.Context, uid types.UID, slash bool, amount uint64, notes, replacementCID string) (*types.Challenge, error)
	ResolveChallengeByTimeout(ctx context.Context, uid types.UID, submitter types.Principal, now uint64) (*types.Challenge, *types.TimeoutResult, error)

	// Dataset-type cost table.
	SetDatasetCost(ctx context.Context, datasetType string, cost uint64) error
}

// FullAccessDatabase represents a full access database with only DB interaction functions.
type FullAccessDatabase interface {
	ReadOnlyDatabase
	WriteAccessDatabase
}

// Database represents a full access database with the proper DB helper functions.
type Database interface {
	io.Closer
	FullAccessDatabase

	DatabasePath() string
	ClearDB() error
}
