// Package rpc exposes the ledger's read-only query API over HTTP. All state
// changes enter through attested operations; the API never mutates.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/pierce403/nweb-next/ledger/db"
	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/params"
)

var log = logrus.WithField("prefix", "rpc")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServiceConfig bundles the dependencies of the query API service.
type ServiceConfig struct {
	Database db.ReadOnlyDatabase
	// LedgerParams overrides the protocol constants, used in tests.
	LedgerParams *params.LedgerConfig
	Host         string
	Port         int
}

// Service serves the read-only ledger query API.
type Service struct {
	ctx        context.Context
	cancel     context.CancelFunc
	db         db.ReadOnlyDatabase
	cfg        *params.LedgerConfig
	server     *http.Server
	failStatus error
}

// New instantiates the query API service and wires its routes.
func New(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	ledgerParams := cfg.LedgerParams
	if ledgerParams == nil {
		ledgerParams = params.Ledger()
	}
	s := &Service{
		ctx:    ctx,
		cancel: cancel,
		db:     cfg.Database,
		cfg:    ledgerParams,
	}
	router := mux.NewRouter()
	router.HandleFunc("/nweb/v1/schemas/{uid}", s.schemaHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/attestations/{uid}", s.attestationHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/submissions", s.submissionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/submissions/{uid}", s.submissionHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/jobs/{jobID}/submission", s.jobSubmissionHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/jobs/{jobID}/challenge", s.jobChallengeHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/challenges", s.challengesHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/challenges/{uid}", s.challengeHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/stakes/{principal}", s.stakeHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/quota/{principal}", s.quotaHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/costs", s.costsHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/bounties", s.bountiesHandler).Methods(http.MethodGet)
	router.HandleFunc("/nweb/v1/treasury", s.treasuryHandler).Methods(http.MethodGet)
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}
	return s
}

// Start the query API service.
func (s *Service) Start() {
	log.WithField("endpoint", s.server.Addr).Info("Starting query API")
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Could not serve query API")
			s.failStatus = err
		}
	}()
}

// Stop the query API service.
func (s *Service) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status checks for any service failure conditions.
func (s *Service) Status() error {
	return s.failStatus
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Could not encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseUID(w http.ResponseWriter, r *http.Request) (types.UID, bool) {
	uid, err := types.UIDFromHex(mux.Vars(r)["uid"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return types.ZeroUID, false
	}
	return uid, true
}

func (s *Service) schemaHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r)
	if !ok {
		return
	}
	schema, err := s.db.Schema(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if schema == nil {
		writeError(w, http.StatusNotFound, "schema not found")
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Service) attestationHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r)
	if !ok {
		return
	}
	att, err := s.db.Attestation(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if att == nil {
		writeError(w, http.StatusNotFound, "attestation not found")
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (s *Service) submissionsHandler(w http.ResponseWriter, r *http.Request) {
	var subs []*types.Submission
	var err error
	if submitter := r.URL.Query().Get("submitter"); submitter != "" {
		subs, err = s.db.SubmitterSubmissions(r.Context(), types.Principal(submitter))
	} else {
		subs, err = s.db.AllSubmissions(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if subs == nil {
		subs = []*types.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Service) submissionHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r)
	if !ok {
		return
	}
	sub, err := s.db.Submission(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Service) jobSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	sub, err := s.db.SubmissionByJobID(r.Context(), mux.Vars(r)["jobID"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Service) jobChallengeHandler(w http.ResponseWriter, r *http.Request) {
	ch, err := s.db.ChallengeByJobID(r.Context(), mux.Vars(r)["jobID"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ch == nil {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Service) challengesHandler(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.db.AllChallenges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if challenges == nil {
		challenges = []*types.Challenge{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (s *Service) challengeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r)
	if !ok {
		return
	}
	ch, err := s.db.Challenge(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ch == nil {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Service) stakeHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := s.db.StakeInfo(r.Context(), types.Principal(mux.Vars(r)["principal"]))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "principal has no stake entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Service) quotaHandler(w http.ResponseWriter, r *http.Request) {
	principal := types.Principal(mux.Vars(r)["principal"])
	entry, err := s.db.StakeInfo(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var quota uint64
	if entry != nil {
		quota = types.CalculateQuota(entry.Amount, entry.Reputation, s.cfg)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal": principal,
		"quota":     quota,
	})
}

func (s *Service) costsHandler(w http.ResponseWriter, r *http.Request) {
	costs, err := s.db.DatasetCosts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, costs)
}

func (s *Service) bountiesHandler(w http.ResponseWriter, r *http.Request) {
	bounties, err := s.db.PendingBounties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bounties == nil {
		bounties = []*types.BountyObligation{}
	}
	writeJSON(w, http.StatusOK, bounties)
}

func (s *Service) treasuryHandler(w http.ResponseWriter, r *http.Request) {
	burned, err := s.db.BurnedTotal(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"burned_total": burned})
}
