// Package types defines the canonical records of the nweb ledger: schemas,
// attestations, stake entries, scan submissions, challenges, and the bounty
// payout queue, along with identifier derivation for each of them.
package types

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"github.com/pierce403/nweb-next/shared/bytesutil"
	"github.com/pierce403/nweb-next/shared/hashutil"
)

// Principal is the 0x-hex address of a network participant as reported by the
// hosting chain. The ledger treats it as an opaque identity.
type Principal string

// UID is a 32-byte content-derived identifier for schemas, attestations,
// submissions and challenges.
type UID [32]byte

// ZeroUID is the absent-identifier sentinel.
var ZeroUID = UID{}

// Hex returns the 0x-prefixed hex encoding of the UID.
func (u UID) Hex() string {
	return "0x" + hex.EncodeToString(u[:])
}

// IsZero reports whether the UID is unset.
func (u UID) IsZero() bool {
	return u == ZeroUID
}

// MarshalJSON encodes the UID as a 0x-hex string.
func (u UID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.Hex() + `"`), nil
}

// UnmarshalJSON decodes a 0x-hex string into the UID.
func (u *UID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := UIDFromHex(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// UIDFromHex parses a 0x-prefixed 32-byte hex string.
func UIDFromHex(s string) (UID, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ZeroUID, errors.Wrap(err, "could not decode uid hex")
	}
	if len(raw) != 32 {
		return ZeroUID, errors.Errorf("uid must be 32 bytes, got %d", len(raw))
	}
	return bytesutil.ToBytes32(raw), nil
}

// Schema is a registered definition of the shape and semantics of a class of
// attestation payloads. Immutable once registered.
type Schema struct {
	UID        UID    `json:"uid"`
	Definition string `json:"definition"`
	Resolver   string `json:"resolver"`
	Revocable  bool   `json:"revocable"`
	CreatedAt  uint64 `json:"created_at"`
}

// SchemaUID derives the content-hash identifier of a schema registration.
// Registering the same definition twice yields the same UID, which the store
// rejects as a duplicate.
func SchemaUID(definition, resolver string, revocable bool) UID {
	rev := []byte{0}
	if revocable {
		rev[0] = 1
	}
	return hashutil.HashConcat([]byte(definition), []byte(resolver), rev)
}

// Attestation is a timestamped claim binding an attester, a subject, a schema
// and an opaque payload. Created once, optionally revoked (terminal).
type Attestation struct {
	UID            UID       `json:"uid"`
	Attester       Principal `json:"attester"`
	Subject        Principal `json:"subject"`
	SchemaUID      UID       `json:"schema_uid"`
	Timestamp      uint64    `json:"timestamp"`
	ExpirationTime uint64    `json:"expiration_time"`
	Revoked        bool      `json:"revoked"`
	Data           []byte    `json:"data"`
}

// AttestationUID derives the identifier of an attestation from the full input
// tuple plus a store-assigned monotonic nonce, so that two attestations made
// within the same second never collide.
func AttestationUID(attester, subject Principal, schemaUID UID, timestamp, nonce uint64, payload []byte) UID {
	payloadHash := hashutil.Hash(payload)
	return hashutil.HashConcat(
		[]byte(attester),
		[]byte(subject),
		schemaUID[:],
		bytesutil.Bytes8(timestamp),
		bytesutil.Bytes8(nonce),
		payloadHash[:],
	)
}

// StakeEntry tracks a principal's deposited stake, reputation and exposure to
// slashing. Slashable is true iff Amount > 0.
type StakeEntry struct {
	Principal  Principal `json:"principal"`
	Amount     uint64    `json:"amount"`
	StakeStart uint64    `json:"stake_start"`
	LastUpdate uint64    `json:"last_update"`
	Reputation uint64    `json:"reputation"`
	Slashable  bool      `json:"slashable"`
}

// Submission records one scan dataset admitted into the network. Its UID is
// the UID of the attestation it was decoded from; one submission may ever
// exist per attestation. Immutable once recorded.
type Submission struct {
	UID            UID       `json:"uid"`
	Submitter      Principal `json:"submitter"`
	JobID          string    `json:"job_id"`
	Namespace      string    `json:"namespace"`
	DatasetType    string    `json:"dataset_type"`
	CID            string    `json:"cid"`
	MerkleRoot     string    `json:"merkle_root"`
	TargetSpecCID  string    `json:"target_spec_cid"`
	StartedAt      uint64    `json:"started_at"`
	FinishedAt     uint64    `json:"finished_at"`
	Tool           string    `json:"tool"`
	Version        string    `json:"version"`
	Vantage        string    `json:"vantage"`
	ManifestSHA256 string    `json:"manifest_sha256"`
	Extra          []byte    `json:"extra"`
	Timestamp      uint64    `json:"timestamp"`
}

// ChallengeReason enumerates the accepted grounds for disputing a submission.
type ChallengeReason uint8

const (
	// ContentUnavailable means the submission's bundle cannot be fetched.
	ContentUnavailable ChallengeReason = iota
	// HashMismatch means the fetched bundle does not match the recorded
	// merkle root or manifest hash.
	HashMismatch
	// FormatInvalid means the bundle does not parse under its dataset type.
	FormatInvalid
)

func (r ChallengeReason) String() string {
	names := [...]string{
		"CONTENT_UNAVAILABLE",
		"HASH_MISMATCH",
		"FORMAT_INVALID",
	}
	if int(r) >= len(names) {
		return "UNKNOWN"
	}
	return names[r]
}

// ParseChallengeReason maps a payload reason code onto the enum.
func ParseChallengeReason(s string) (ChallengeReason, error) {
	switch s {
	case "CONTENT_UNAVAILABLE":
		return ContentUnavailable, nil
	case "HASH_MISMATCH":
		return HashMismatch, nil
	case "FORMAT_INVALID":
		return FormatInvalid, nil
	default:
		return 0, errors.Errorf("unknown challenge reason %q", s)
	}
}

// Challenge is a time-boxed dispute against a recorded submission. Its UID is
// the UID of the challenge attestation. Mutated exactly once, by submitter
// resolution or timeout processing, then frozen.
type Challenge struct {
	UID            UID             `json:"uid"`
	JobID          string          `json:"job_id"`
	CID            string          `json:"cid"`
	Reason         ChallengeReason `json:"reason"`
	EvidenceCID    string          `json:"evidence_cid"`
	GraceDeadline  uint64          `json:"grace_deadline"`
	Challenger     Principal       `json:"challenger"`
	Resolved       bool            `json:"resolved"`
	Slash          bool            `json:"slash"`
	SlashAmount    uint64          `json:"slash_amount"`
	Notes          string          `json:"notes"`
	ReplacementCID string          `json:"replacement_cid"`
}

// BountyObligation is the computed, unsettled share of a timeout slash owed
// to the challenger. Settlement is the hosting value layer's job; the ledger
// only maintains the queue.
type BountyObligation struct {
	ChallengeUID UID       `json:"challenge_uid"`
	Challenger   Principal `json:"challenger"`
	Amount       uint64    `json:"amount"`
	CreatedAt    uint64    `json:"created_at"`
}

// TimeoutResult reports the effects of processing a challenge timeout.
type TimeoutResult struct {
	Submitter   Principal
	SlashAmount uint64
	Bounty      uint64
}
