// Package challenge implements the challenge coordinator: filing disputes
// against recorded submissions, accepting submitter resolutions within the
// grace period, and processing timeouts into slashes and challenger bounties.
package challenge

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/pierce403/nweb-next/ledger/db"
	"github.com/pierce403/nweb-next/ledger/feed"
	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/hashutil"
	"github.com/pierce403/nweb-next/shared/params"
)

var log = logrus.WithField("prefix", "challenge")

var (
	challengesFiled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_challenges_filed_total",
		Help: "Total number of challenges filed against submissions.",
	})
	challengesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_challenges_resolved_total",
		Help: "Total number of challenges resolved by their submitter.",
	})
	challengesTimedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_challenges_timed_out_total",
		Help: "Total number of challenges resolved by timeout.",
	})
)

// ServiceConfig bundles the dependencies of the challenge coordinator.
type ServiceConfig struct {
	Database db.Database
	Feed     *event.Feed
	// ChallengeSchemaUID is the registered schema challenge filings are
	// attested under; ResolutionSchemaUID the schema for submitter answers.
	ChallengeSchemaUID  types.UID
	ResolutionSchemaUID types.UID
	// LedgerParams overrides the protocol constants, used in tests.
	LedgerParams *params.LedgerConfig
	// Now overrides the clock, used in tests.
	Now func() time.Time
}

// Service coordinates the dispute lifecycle of recorded submissions.
type Service struct {
	ctx                 context.Context
	cancel              context.CancelFunc
	db                  db.Database
	feed                *event.Feed
	challengeSchemaUID  types.UID
	resolutionSchemaUID types.UID
	cfg                 *params.LedgerConfig
	now                 func() time.Time
}

// New instantiates the challenge coordinator service.
func New(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	ledgerParams := cfg.LedgerParams
	if ledgerParams == nil {
		ledgerParams = params.Ledger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		ctx:                 ctx,
		cancel:              cancel,
		db:                  cfg.Database,
		feed:                cfg.Feed,
		challengeSchemaUID:  cfg.ChallengeSchemaUID,
		resolutionSchemaUID: cfg.ResolutionSchemaUID,
		cfg:                 ledgerParams,
		now:                 now,
	}
}

// Start the challenge coordinator service.
func (s *Service) Start() {
	log.WithField("gracePeriod", time.Duration(s.cfg.GracePeriodSeconds)*time.Second).Info("Starting challenge coordinator")
}

// Stop the challenge coordinator service.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil; the service holds no connections that can degrade.
func (s *Service) Status() error {
	return nil
}

// verifyAttestation runs the shared validation ladder for challenge and
// resolution attestations: existence, attester, schema, payload hash.
func (s *Service) verifyAttestation(ctx context.Context, caller types.Principal, uid, wantSchema types.UID, expectedPayloadHash [32]byte) (*types.Attestation, error) {
	att, err := s.db.Attestation(ctx, uid)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, errors.Wrapf(types.ErrAttestationNotFound, "uid %#x", uid)
	}
	if att.Attester != caller {
		return nil, errors.Wrapf(types.ErrNotAttester, "caller %s", caller)
	}
	if att.SchemaUID != wantSchema {
		return nil, errors.Wrapf(types.ErrWrongSchema, "got %#x, want %#x", att.SchemaUID, wantSchema)
	}
	if hashutil.Hash(att.Data) != expectedPayloadHash {
		return nil, errors.Wrapf(types.ErrPayloadHashMismatch, "attestation %#x", uid)
	}
	return att, nil
}

// FileChallenge opens a dispute against the submission recorded under the
// payload's job id. The grace deadline is fixed at filing time; a job id may
// be challenged at most once, ever.
func (s *Service) FileChallenge(ctx context.Context, caller types.Principal, attestationUID types.UID, expectedPayloadHash [32]byte) (*types.Challenge, error) {
	att, err := s.verifyAttestation(ctx, caller, attestationUID, s.challengeSchemaUID, expectedPayloadHash)
	if err != nil {
		return nil, err
	}
	payload, reason, err := types.DecodeChallengePayload(att.Data)
	if err != nil {
		return nil, err
	}
	target, err := s.db.SubmissionByJobID(ctx, payload.JobID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.Wrapf(types.ErrSubmissionNotFound, "job %s", payload.JobID)
	}

	ch := &types.Challenge{
		UID:           attestationUID,
		JobID:         payload.JobID,
		CID:           payload.CID,
		Reason:        reason,
		EvidenceCID:   payload.EvidenceCID,
		GraceDeadline: uint64(s.now().Unix()) + s.cfg.GracePeriodSeconds,
		Challenger:    caller,
	}
	if err := s.db.SaveChallenge(ctx, ch); err != nil {
		return nil, err
	}
	challengesFiled.Inc()
	log.WithFields(logrus.Fields{
		"jobID":    ch.JobID,
		"reason":   ch.Reason.String(),
		"deadline": ch.GraceDeadline,
	}).Info("Challenge filed")
	s.feed.Send(&feed.Event{
		Type: feed.ChallengeFiled,
		Data: &feed.ChallengeFiledData{Challenge: ch},
	})
	return ch, nil
}

// Resolve applies a submitter's answer to an open challenge. Only the owner
// of the challenged submission may resolve, and only before timeout
// processing gets there first. A slash conceded in the payload is recorded on
// the challenge; stake only moves through timeout processing.
func (s *Service) Resolve(ctx context.Context, caller types.Principal, attestationUID types.UID, expectedPayloadHash [32]byte) (*types.Challenge, error) {
	att, err := s.verifyAttestation(ctx, caller, attestationUID, s.resolutionSchemaUID, expectedPayloadHash)
	if err != nil {
		return nil, err
	}
	payload, err := types.DecodeResolutionPayload(att.Data)
	if err != nil {
		return nil, err
	}
	ch, err := s.db.Challenge(ctx, payload.ChallengeUID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, errors.Wrapf(types.ErrChallengeNotFound, "uid %#x", payload.ChallengeUID)
	}
	target, err := s.db.SubmissionByJobID(ctx, ch.JobID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.Wrapf(types.ErrSubmissionNotFound, "job %s", ch.JobID)
	}
	if target.Submitter != caller {
		return nil, errors.Wrapf(types.ErrNotSubmissionOwner, "caller %s, owner %s", caller, target.Submitter)
	}

	resolved, err := s.db.ResolveChallenge(ctx, payload.ChallengeUID, payload.Slash, payload.SlashAmount, payload.Notes, payload.ReplacementCID)
	if err != nil {
		return nil, err
	}
	challengesResolved.Inc()
	log.WithFields(logrus.Fields{
		"jobID": resolved.JobID,
		"slash": resolved.Slash,
	}).Info("Challenge resolved by submitter")
	s.feed.Send(&feed.Event{
		Type: feed.ChallengeResolved,
		Data: &feed.ChallengeResolvedData{Challenge: resolved},
	})
	return resolved, nil
}

// CanProcessTimeout reports whether a challenge is eligible for timeout
// processing right now. Advisory only: the processing transaction re-checks.
func (s *Service) CanProcessTimeout(ctx context.Context, uid types.UID) (bool, error) {
	ch, err := s.db.Challenge(ctx, uid)
	if err != nil {
		return false, err
	}
	if ch == nil {
		return false, errors.Wrapf(types.ErrChallengeNotFound, "uid %#x", uid)
	}
	return !ch.Resolved && uint64(s.now().Unix()) >= ch.GraceDeadline, nil
}

// ProcessTimeout resolves an expired challenge against the submitter: the
// submitter's stake is slashed by the protocol percentage, clamped so the
// balance never drops below the minimum stake, and half of the slash is
// queued as the challenger's bounty. Anyone may trigger processing once the
// grace deadline passes.
func (s *Service) ProcessTimeout(ctx context.Context, uid types.UID) (*types.Challenge, *types.TimeoutResult, error) {
	ch, err := s.db.Challenge(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	if ch == nil {
		return nil, nil, errors.Wrapf(types.ErrChallengeNotFound, "uid %#x", uid)
	}
	target, err := s.db.SubmissionByJobID(ctx, ch.JobID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, errors.Wrapf(types.ErrSubmissionNotFound, "job %s", ch.JobID)
	}

	resolved, result, err := s.db.ResolveChallengeByTimeout(ctx, uid, target.Submitter, uint64(s.now().Unix()))
	if err != nil {
		return nil, nil, err
	}
	challengesTimedOut.Inc()
	log.WithFields(logrus.Fields{
		"jobID":     resolved.JobID,
		"submitter": string(result.Submitter),
		"slashed":   result.SlashAmount,
		"bounty":    result.Bounty,
	}).Warn("Challenge resolved by timeout")
	if result.SlashAmount > 0 {
		entry, err := s.db.StakeInfo(ctx, result.Submitter)
		if err != nil {
			return nil, nil, err
		}
		s.feed.Send(&feed.Event{
			Type: feed.Slashed,
			Data: &feed.StakeChangedData{Principal: result.Submitter, Amount: result.SlashAmount, Balance: entry.Amount},
		})
	}
	s.feed.Send(&feed.Event{
		Type: feed.ChallengeResolved,
		Data: &feed.ChallengeResolvedData{Challenge: resolved, ByTimeout: true, Bounty: result.Bounty},
	})
	return resolved, result, nil
}

// Challenge retrieves a challenge, nil if unknown.
func (s *Service) Challenge(ctx context.Context, uid types.UID) (*types.Challenge, error) {
	return s.db.Challenge(ctx, uid)
}

// ByJobID retrieves the challenge indexed under a job id, nil if none.
func (s *Service) ByJobID(ctx context.Context, jobID string) (*types.Challenge, error) {
	return s.db.ChallengeByJobID(ctx, jobID)
}

// All retrieves every filed challenge.
func (s *Service) All(ctx context.Context) ([]*types.Challenge, error) {
	return s.db.AllChallenges(ctx)
}

// PendingBounties returns the unsettled challenger bounty queue.
func (s *Service) PendingBounties(ctx context.Context) ([]*types.BountyObligation, error) {
	return s.db.PendingBounties(ctx)
}
