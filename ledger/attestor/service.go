// Package attestor implements the attestation store: the schema registry and
// the append-only attestation log every other ledger component builds on.
package attestor

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
)

var log = logrus.WithField("prefix", "attestor")

var (
	schemasRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_schemas_registered_total",
		Help: "Total number of attestation schemas registered.",
	})
	attestationsMade = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_attestations_made_total",
		Help: "Total number of attestations appended to the log.",
	})
	attestationsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_attestations_revoked_total",
		Help: "Total number of attestations revoked.",
	})
)

// ServiceConfig bundles the dependencies of the attestor service.
type ServiceConfig struct {
	Database db.Database
	Feed     *event.Feed
	// Operator may register schemas. Schema registration shapes what every
	// downstream component accepts, so it is not open to arbitrary callers.
	Operator types.Principal
	// Now overrides the clock, used in tests.
	Now func() time.Time
}

// Service manages the schema registry and attestation log.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	db       db.Database
	feed     *event.Feed
	operator types.Principal
	now      func() time.Time
}

// New instantiates the attestor service.
func New(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		ctx:      ctx,
		cancel:   cancel,
		db:       cfg.Database,
		feed:     cfg.Feed,
		operator: cfg.Operator,
		now:      now,
	}
}

// Start the attestor service.
func (s *Service) Start() {
	log.WithField("operator", string(s.operator)).Info("Starting attestation store")
}

// Stop the attestor service.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil; the service holds no connections that can degrade.
func (s *Service) Status() error {
	return nil
}

// RegisterSchema registers an immutable attestation schema. Only the ledger
// operator may register schemas; the uid is derived from the definition, so a
// second registration of the same definition fails as a duplicate.
func (s *Service) RegisterSchema(ctx context.Context, caller types.Principal, definition, resolver string, revocable bool) (*types.Schema, error) {
	if caller != s.operator {
		return nil, errors.Wrapf(types.ErrNotOperator, "caller %s", caller)
	}
	schema := &types.Schema{
		UID:        types.SchemaUID(definition, resolver, revocable),
		Definition: definition,
		Resolver:   resolver,
		Revocable:  revocable,
		CreatedAt:  uint64(s.now().Unix()),
	}
	if err := s.db.SaveSchema(ctx, schema); err != nil {
		return nil, err
	}
	schemasRegistered.Inc()
	log.WithFields(logrus.Fields{
		"uid":       schema.UID.Hex(),
		"revocable": revocable,
	}).Info("Registered attestation schema")
	s.feed.Send(&feed.Event{
		Type: feed.SchemaRegistered,
		Data: &feed.SchemaRegisteredData{Schema: schema},
	})
	return schema, nil
}

// Schema retrieves a registered schema, nil if unknown.
func (s *Service) Schema(ctx context.Context, uid types.UID) (*types.Schema, error) {
	return s.db.Schema(ctx, uid)
}

// Attest appends an attestation to the log and returns its assigned uid. The
// schema must exist; payload bytes are stored opaquely and only interpreted
// by the components that consume them.
func (s *Service) Attest(ctx context.Context, attester, subject types.Principal, schemaUID types.UID, expirationTime uint64, data []byte) (types.UID, error) {
	schema, err := s.db.Schema(ctx, schemaUID)
	if err != nil {
		return types.ZeroUID, err
	}
	if schema == nil {
		return types.ZeroUID, errors.Wrapf(types.ErrSchemaNotFound, "uid %#x", schemaUID)
	}
	att := &types.Attestation{
		Attester:       attester,
		Subject:        subject,
		SchemaUID:      schemaUID,
		Timestamp:      uint64(s.now().Unix()),
		ExpirationTime: expirationTime,
		Data:           data,
	}
	uid, err := s.db.SaveAttestation(ctx, att)
	if err != nil {
		return types.ZeroUID, err
	}
	attestationsMade.Inc()
	s.feed.Send(&feed.Event{
		Type: feed.AttestationMade,
		Data: &feed.AttestationMadeData{UID: uid, Attester: attester, Subject: subject},
	})
	return uid, nil
}

// Attestation retrieves an attestation, nil if unknown.
func (s *Service) Attestation(ctx context.Context, uid types.UID) (*types.Attestation, error) {
	return s.db.Attestation(ctx, uid)
}

// Revoke marks an attestation revoked. Only the original attester may revoke,
// only under a revocable schema, and only once.
func (s *Service) Revoke(ctx context.Context, caller types.Principal, uid types.UID) (*types.Attestation, error) {
	att, err := s.db.RevokeAttestation(ctx, caller, uid)
	if err != nil {
		return nil, err
	}
	attestationsRevoked.Inc()
	log.WithField("uid", uid.Hex()).Info("Revoked attestation")
	s.feed.Send(&feed.Event{
		Type: feed.AttestationRevoked,
		Data: &feed.AttestationRevokedData{UID: uid, Attester: caller},
	})
	return att, nil
}
