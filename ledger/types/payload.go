package types

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Attestation payloads are versioned JSON envelopes produced by the external
// submission and challenge tooling. The ledger verifies the raw bytes by hash
// comparison against the stored attestation data and decodes them here; a
// payload that does not carry the expected schema discriminator, or that is
// missing required fields, is rejected as ErrInvalidPayload. The observed
// contract stubbed this decoding out; nothing here trusts zero defaults.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Payload schema discriminators. Bumping a version means adding a new
// discriminator, never changing the meaning of an existing one.
const (
	SubmissionPayloadSchema = "nweb/scan-submission/v1"
	ChallengePayloadSchema  = "nweb/challenge/v1"
	ResolutionPayloadSchema = "nweb/challenge-resolution/v1"
)

// SubmissionPayload carries the scan bundle metadata for one submission.
type SubmissionPayload struct {
	Schema         string    `json:"schema"`
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
	Extra          []byte    `json:"extra,omitempty"`
}

// Encode serializes the payload with its schema discriminator set.
func (p *SubmissionPayload) Encode() ([]byte, error) {
	p.Schema = SubmissionPayloadSchema
	return json.Marshal(p)
}

// DecodeSubmissionPayload parses and validates a scan submission payload.
func DecodeSubmissionPayload(data []byte) (*SubmissionPayload, error) {
	p := &SubmissionPayload{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if p.Schema != SubmissionPayloadSchema {
		return nil, errors.Wrapf(ErrInvalidPayload, "unexpected payload schema %q", p.Schema)
	}
	if p.Submitter == "" || p.JobID == "" || p.DatasetType == "" || p.CID == "" {
		return nil, errors.Wrap(ErrInvalidPayload, "missing required submission fields")
	}
	if p.FinishedAt < p.StartedAt {
		return nil, errors.Wrap(ErrInvalidPayload, "scan window finished before it started")
	}
	return p, nil
}

// ChallengePayload carries the dispute data for one challenge filing.
type ChallengePayload struct {
	Schema      string `json:"schema"`
	JobID       string `json:"job_id"`
	CID         string `json:"cid"`
	Reason      string `json:"reason"`
	EvidenceCID string `json:"evidence_cid,omitempty"`
}

// Encode serializes the payload with its schema discriminator set.
func (p *ChallengePayload) Encode() ([]byte, error) {
	p.Schema = ChallengePayloadSchema
	return json.Marshal(p)
}

// DecodeChallengePayload parses and validates a challenge payload. The reason
// code must be one of the three accepted grounds.
func DecodeChallengePayload(data []byte) (*ChallengePayload, ChallengeReason, error) {
	p := &ChallengePayload{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, 0, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if p.Schema != ChallengePayloadSchema {
		return nil, 0, errors.Wrapf(ErrInvalidPayload, "unexpected payload schema %q", p.Schema)
	}
	if p.JobID == "" || p.CID == "" {
		return nil, 0, errors.Wrap(ErrInvalidPayload, "missing required challenge fields")
	}
	reason, err := ParseChallengeReason(p.Reason)
	if err != nil {
		return nil, 0, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	return p, reason, nil
}

// ResolutionPayload carries a submitter's answer to an open challenge.
type ResolutionPayload struct {
	Schema         string `json:"schema"`
	ChallengeUID   UID    `json:"challenge_uid"`
	Slash          bool   `json:"slash"`
	SlashAmount    uint64 `json:"slash_amount"`
	Notes          string `json:"notes,omitempty"`
	ReplacementCID string `json:"replacement_cid,omitempty"`
}

// Encode serializes the payload with its schema discriminator set.
func (p *ResolutionPayload) Encode() ([]byte, error) {
	p.Schema = ResolutionPayloadSchema
	return json.Marshal(p)
}

// DecodeResolutionPayload parses and validates a challenge resolution payload.
func DecodeResolutionPayload(data []byte) (*ResolutionPayload, error) {
	p := &ResolutionPayload{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if p.Schema != ResolutionPayloadSchema {
		return nil, errors.Wrapf(ErrInvalidPayload, "unexpected payload schema %q", p.Schema)
	}
	if p.ChallengeUID.IsZero() {
		return nil, errors.Wrap(ErrInvalidPayload, "missing challenge uid")
	}
	return p, nil
}
