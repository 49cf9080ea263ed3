// Package feed defines the change-notification events emitted by every
// mutating ledger operation. The node owns a single event feed of *Event
// values; the external mirroring indexer subscribes to rebuild its replica.
// The ledger remains the sole source of truth; the replica must never be
// treated as authoritative for quota or slash decisions.
//
// How to add a new event to the feed:
//  1. Add a constant describing the event to the list below.
//  2. Add a structure with the name `<event>Data` containing any data fields
//     that should be supplied with the event.
//
// The same event is supplied to all subscribers, so the event received by
// subscribers should be considered read-only.
package feed

import (
	"github.com/pierce403/nweb-next/ledger/types"
)

// EventType is the type that defines the type of event.
type EventType int

const (
	// SchemaRegistered is sent after a new attestation schema is stored.
	SchemaRegistered EventType = iota + 1
	// AttestationMade is sent after an attestation is appended to the log.
	AttestationMade
	// AttestationRevoked is sent after an attestation is revoked.
	AttestationRevoked
	// Staked is sent after a deposit increases a principal's stake.
	Staked
	// Withdrawn is sent after a withdrawal decreases a principal's stake.
	Withdrawn
	// Slashed is sent after stake is forfeited to the treasury sink.
	Slashed
	// ReputationUpdated is sent after a reputation adjustment.
	ReputationUpdated
	// SubmissionRecorded is sent after a scan submission is admitted.
	SubmissionRecorded
	// ChallengeFiled is sent after a dispute is opened against a submission.
	ChallengeFiled
	// ChallengeResolved is sent after a challenge reaches a terminal state,
	// whether by submitter resolution or by timeout.
	ChallengeResolved
)

// Event is the event that is sent with ledger feed updates.
type Event struct {
	// Type is the type of event.
	Type EventType
	// Data is event-specific data.
	Data interface{}
}

// SchemaRegisteredData is the data sent with SchemaRegistered events.
type SchemaRegisteredData struct {
	Schema *types.Schema
}

// AttestationMadeData is the data sent with AttestationMade events.
type AttestationMadeData struct {
	UID      types.UID
	Attester types.Principal
	Subject  types.Principal
}

// AttestationRevokedData is the data sent with AttestationRevoked events.
type AttestationRevokedData struct {
	UID      types.UID
	Attester types.Principal
}

// StakeChangedData is the data sent with Staked, Withdrawn and Slashed events.
type StakeChangedData struct {
	Principal types.Principal
	// Amount is the delta applied by the operation.
	Amount uint64
	// Balance is the staked balance after the operation.
	Balance uint64
}

// ReputationUpdatedData is the data sent with ReputationUpdated events.
type ReputationUpdatedData struct {
	Principal  types.Principal
	Delta      int64
	Reputation uint64
}

// SubmissionRecordedData is the data sent with SubmissionRecorded events.
type SubmissionRecordedData struct {
	Submission *types.Submission
}

// ChallengeFiledData is the data sent with ChallengeFiled events.
type ChallengeFiledData struct {
	Challenge *types.Challenge
}

// ChallengeResolvedData is the data sent with ChallengeResolved events.
type ChallengeResolvedData struct {
	Challenge *types.Challenge
	// ByTimeout is true when the terminal state was reached by timeout
	// processing rather than submitter action.
	ByTimeout bool
	// Bounty is the computed (unsettled) challenger bounty, non-zero only
	// for timeout resolutions that slashed.
	Bounty uint64
}
