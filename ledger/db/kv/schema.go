package kv

import "github.com/pierce403/nweb-next/ledger/types"

// The schema defines how to store and retrieve data from the db. Records are
// keyed by their 32-byte uids; index buckets map secondary keys (submitter,
// job id) back onto those uids for prefix scans and existence checks.
var (
	schemasBucket      = []byte("schemas")
	attestationsBucket = []byte("attestations")
	stakesBucket       = []byte("stakes")
	treasuryBucket     = []byte("treasury")
	submissionsBucket  = []byte("submissions")
	challengesBucket   = []byte("challenges")
	bountiesBucket     = []byte("bounties")
	datasetCostsBucket = []byte("dataset-costs")

	// Indices buckets.
	submitterSubmissionIndexBucket = []byte("submitter-submission-indices")
	jobSubmissionIndexBucket       = []byte("job-submission-indices")
	jobChallengeIndexBucket        = []byte("job-challenge-indices")

	// Treasury keys.
	burnedTotalKey = []byte("burned-total")
)

// encodeSubmitterUID builds a submitter-index key so that one cursor prefix
// scan over a principal returns all of their submission uids.
func encodeSubmitterUID(submitter types.Principal, uid types.UID) []byte {
	return append([]byte(submitter), uid[:]...)
}
