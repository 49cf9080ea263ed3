package types

import "github.com/pkg/errors"

// Ledger failure taxonomy. Every operation surfaces exactly one of these
// sentinels (possibly wrapped with call-site context); callers discriminate
// with errors.Is. A failed operation never partially applies.

// NotFound class.
var (
	ErrSchemaNotFound      = errors.New("schema not found")
	ErrAttestationNotFound = errors.New("attestation not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
)

// Unauthorized class.
var (
	ErrNotAttester        = errors.New("caller is not the attester")
	ErrNotSubmissionOwner = errors.New("caller is not the submission owner")
	ErrNotOperator        = errors.New("caller is not the ledger operator")
)

// SchemaMismatch class.
var (
	ErrWrongSchema  = errors.New("attestation uses the wrong schema")
	ErrNotRevocable = errors.New("schema does not permit revocation")
)

// DataIntegrity class.
var (
	ErrPayloadHashMismatch = errors.New("payload hash does not match attestation data")
	ErrInvalidPayload      = errors.New("malformed or inconsistent payload")
	ErrUnknownDatasetType  = errors.New("dataset type has no configured cost")
)

// StateConflict class.
var (
	ErrDuplicateSchema      = errors.New("schema already registered")
	ErrDuplicateAttestation = errors.New("attestation uid already exists")
	ErrDuplicateSubmission  = errors.New("submission already recorded for attestation")
	ErrAlreadyRevoked       = errors.New("attestation already revoked")
	ErrAlreadyChallenged    = errors.New("job id already has a challenge")
	ErrAlreadyResolved      = errors.New("challenge already resolved")
)

// InsufficientResource class.
var (
	ErrBelowMinimumStake = errors.New("deposit below minimum stake")
	ErrInsufficientStake = errors.New("insufficient staked balance")
	ErrNotSlashable      = errors.New("principal has no slashable stake")
	ErrInsufficientQuota = errors.New("insufficient submission quota")
)

// TimingViolation class.
var (
	// ErrGracePeriodActive is returned by timeout processing before the
	// grace deadline has elapsed.
	ErrGracePeriodActive = errors.New("grace period has not ended")
)
