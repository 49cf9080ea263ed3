// Package submission implements the submission registry: it verifies scan
// submission attestations against their schema and payload hash, prices them
// against the dataset cost table, and records the ones the quota gate admits.
package submission

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
)

var log = logrus.WithField("prefix", "submission")

var (
	submissionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_submissions_recorded_total",
		Help: "Total number of scan submissions admitted.",
	})
	submissionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_submissions_rejected_total",
		Help: "Total number of scan submissions rejected by validation or quota.",
	})
)

// ServiceConfig bundles the dependencies of the submission registry service.
type ServiceConfig struct {
	Database db.Database
	Feed     *event.Feed
	// ScanSchemaUID is the registered schema every scan submission
	// attestation must be made under.
	ScanSchemaUID types.UID
	// Operator may edit the dataset cost table.
	Operator types.Principal
	// Now overrides the clock, used in tests.
	Now func() time.Time
}

// Service validates and records scan submissions.
type Service struct {
	ctx           context.Context
	cancel        context.CancelFunc
	db            db.Database
	feed          *event.Feed
	scanSchemaUID types.UID
	operator      types.Principal
	now           func() time.Time
}

// New instantiates the submission registry service.
func New(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		ctx:           ctx,
		cancel:        cancel,
		db:            cfg.Database,
		feed:          cfg.Feed,
		scanSchemaUID: cfg.ScanSchemaUID,
		operator:      cfg.Operator,
		now:           now,
	}
}

// Start the submission registry service.
func (s *Service) Start() {
	log.WithField("scanSchema", s.scanSchemaUID.Hex()).Info("Starting submission registry")
}

// Stop the submission registry service.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil; the service holds no connections that can degrade.
func (s *Service) Status() error {
	return nil
}

// SubmitScan validates a scan submission attestation and records it. The
// expected payload hash binds the caller's view of the bundle to the stored
// attestation bytes. Checks run in a fixed order so rejections are
// deterministic: existence, attester, schema, payload hash, payload decode,
// submitter identity, dataset pricing, then the quota gate inside the
// recording transaction.
func (s *Service) SubmitScan(ctx context.Context, caller types.Principal, attestationUID types.UID, expectedPayloadHash [32]byte) (*types.Submission, error) {
	att, err := s.db.Attestation(ctx, attestationUID)
	if err != nil {
		return nil, err
	}
	if att == nil {
		submissionsRejected.Inc()
		return nil, errors.Wrapf(types.ErrAttestationNotFound, "uid %#x", attestationUID)
	}
	if att.Attester != caller {
		submissionsRejected.Inc()
		return nil, errors.Wrapf(types.ErrNotAttester, "caller %s", caller)
	}
	if att.SchemaUID != s.scanSchemaUID {
		submissionsRejected.Inc()
		return nil, errors.Wrapf(types.ErrWrongSchema, "got %#x, want scan schema %#x", att.SchemaUID, s.scanSchemaUID)
	}
	if hashutil.Hash(att.Data) != expectedPayloadHash {
		submissionsRejected.Inc()
		return nil, errors.Wrapf(types.ErrPayloadHashMismatch, "attestation %#x", attestationUID)
	}
	payload, err := types.DecodeSubmissionPayload(att.Data)
	if err != nil {
		submissionsRejected.Inc()
		return nil, err
	}
	if payload.Submitter != caller {
		submissionsRejected.Inc()
		return nil, errors.Wrapf(types.ErrNotSubmissionOwner, "payload names %s, caller is %s", payload.Submitter, caller)
	}
	cost, ok, err := s.db.DatasetCost(ctx, payload.DatasetType)
	if err != nil {
		return nil, err
	}
	if !ok {
		submissionsRejected.Inc()
		return nil, errors.Wrapf(types.ErrUnknownDatasetType, "type %q", payload.DatasetType)
	}

	sub := &types.Submission{
		UID:            attestationUID,
		Submitter:      caller,
		JobID:          payload.JobID,
		Namespace:      payload.Namespace,
		DatasetType:    payload.DatasetType,
		CID:            payload.CID,
		MerkleRoot:     payload.MerkleRoot,
		TargetSpecCID:  payload.TargetSpecCID,
		StartedAt:      payload.StartedAt,
		FinishedAt:     payload.FinishedAt,
		Tool:           payload.Tool,
		Version:        payload.Version,
		Vantage:        payload.Vantage,
		ManifestSHA256: payload.ManifestSHA256,
		Extra:          payload.Extra,
		Timestamp:      uint64(s.now().Unix()),
	}
	if err := s.db.SaveSubmission(ctx, sub, cost); err != nil {
		submissionsRejected.Inc()
		return nil, err
	}
	submissionsRecorded.Inc()
	log.WithFields(logrus.Fields{
		"jobID":       sub.JobID,
		"datasetType": sub.DatasetType,
		"cid":         sub.CID,
		"cost":        cost,
	}).Info("Recorded scan submission")
	s.feed.Send(&feed.Event{
		Type: feed.SubmissionRecorded,
		Data: &feed.SubmissionRecordedData{Submission: sub},
	})
	return sub, nil
}

// Submission retrieves a recorded submission, nil if unknown.
func (s *Service) Submission(ctx context.Context, uid types.UID) (*types.Submission, error) {
	return s.db.Submission(ctx, uid)
}

// ByJobID retrieves the submission indexed under a job id, nil if none.
func (s *Service) ByJobID(ctx context.Context, jobID string) (*types.Submission, error) {
	return s.db.SubmissionByJobID(ctx, jobID)
}

// BySubmitter retrieves every submission recorded by a principal.
func (s *Service) BySubmitter(ctx context.Context, submitter types.Principal) ([]*types.Submission, error) {
	return s.db.SubmitterSubmissions(ctx, submitter)
}

// All retrieves the global submission index.
func (s *Service) All(ctx context.Context) ([]*types.Submission, error) {
	return s.db.AllSubmissions(ctx)
}

// IsSubmissionValid reports whether a submission was ever recorded under the
// given uid. It is an existence check only; dispute status lives on the
// job's challenge record and never flips this answer.
func (s *Service) IsSubmissionValid(ctx context.Context, uid types.UID) (bool, error) {
	sub, err := s.db.Submission(ctx, uid)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

// DatasetCosts returns the current dataset-type cost table.
func (s *Service) DatasetCosts(ctx context.Context) (map[string]uint64, error) {
	return s.db.DatasetCosts(ctx)
}

// SetDatasetCost upserts a cost table entry. Operator only: pricing shifts
// the quota arithmetic for every submitter.
func (s *Service) SetDatasetCost(ctx context.Context, caller types.Principal, datasetType string, cost uint64) error {
	if caller != s.operator {
		return errors.Wrapf(types.ErrNotOperator, "caller %s", caller)
	}
	if err := s.db.SetDatasetCost(ctx, datasetType, cost); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"datasetType": datasetType,
		"cost":        cost,
	}).Info("Updated dataset cost")
	return nil
}
