// Package node wires the ledger database, the domain services and the query
// API into one process and manages their lifecycle.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/pierce403/nweb-next/ledger/attestor"
	"github.com/pierce403/nweb-next/ledger/challenge"
	"github.com/pierce403/nweb-next/ledger/db"
	"github.com/pierce403/nweb-next/ledger/db/kv"
	"github.com/pierce403/nweb-next/ledger/flags"
	"github.com/pierce403/nweb-next/ledger/rpc"
	"github.com/pierce403/nweb-next/ledger/stake"
	"github.com/pierce403/nweb-next/ledger/submission"
	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/runtime"
	"github.com/pierce403/nweb-next/shared/cmd"
	"github.com/pierce403/nweb-next/shared/prometheus"
)

var log = logrus.WithField("prefix", "node")

// Canonical schema definitions registered at first boot. Their uids are
// content-derived, so every node arrives at the same three identifiers.
const (
	scanSchemaDefinition       = "string jobId,string namespace,string datasetType,string cid,string merkleRoot,string targetSpecCid,uint64 startedAt,uint64 finishedAt,string tool,string version,string vantage,string manifestSha256"
	challengeSchemaDefinition  = "string jobId,string cid,string reason,string evidenceCid"
	resolutionSchemaDefinition = "bytes32 challengeUid,bool slash,uint64 slashAmount,string notes,string replacementCid"
)

// LedgerNode defines a struct that handles the services running the nweb
// staking and slashing ledger. It handles the lifecycle of the entire system
// and registers services to a service registry.
type LedgerNode struct {
	cliCtx     *cli.Context
	ctx        context.Context
	cancel     context.CancelFunc
	lock       sync.RWMutex
	services   *runtime.ServiceRegistry
	stop       chan struct{} // Channel to wait for termination notifications.
	db         db.Database
	ledgerFeed *event.Feed
}

// New creates a new node instance, sets up configuration options, and
// registers every required service.
func New(cliCtx *cli.Context) (*LedgerNode, error) {
	ctx, cancel := context.WithCancel(cliCtx.Context)
	node := &LedgerNode{
		cliCtx:     cliCtx,
		ctx:        ctx,
		cancel:     cancel,
		services:   runtime.NewServiceRegistry(),
		stop:       make(chan struct{}),
		ledgerFeed: new(event.Feed),
	}

	if err := node.startDB(cliCtx); err != nil {
		return nil, err
	}
	if err := node.registerSchemas(); err != nil {
		return nil, err
	}

	operator := types.Principal(cliCtx.String(flags.OperatorFlag.Name))
	if err := node.registerAttestorService(operator); err != nil {
		return nil, err
	}
	if err := node.registerStakeService(); err != nil {
		return nil, err
	}
	if err := node.registerSubmissionService(operator); err != nil {
		return nil, err
	}
	if err := node.registerChallengeService(); err != nil {
		return nil, err
	}
	if err := node.registerRPCService(cliCtx); err != nil {
		return nil, err
	}
	if err := node.registerPrometheusService(cliCtx); err != nil {
		return nil, err
	}
	return node, nil
}

func (n *LedgerNode) startDB(cliCtx *cli.Context) error {
	dataDir := cliCtx.String(cmd.DataDirFlag.Name)
	d, err := kv.NewKVStore(dataDir, nil)
	if err != nil {
		return err
	}
	if cliCtx.Bool(cmd.ClearDB.Name) {
		log.Warning("Removing database")
		if err := d.ClearDB(); err != nil {
			return err
		}
		if err := d.Close(); err != nil {
			return err
		}
		d, err = kv.NewKVStore(dataDir, nil)
		if err != nil {
			return err
		}
	}
	log.WithField("path", d.DatabasePath()).Info("Checking db")
	n.db = d
	return nil
}

// registerSchemas persists the canonical schemas if a fresh database does not
// hold them yet.
func (n *LedgerNode) registerSchemas() error {
	for _, definition := range []string{
		scanSchemaDefinition,
		challengeSchemaDefinition,
		resolutionSchemaDefinition,
	} {
		uid := types.SchemaUID(definition, "", false)
		existing, err := n.db.Schema(n.ctx, uid)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := n.db.SaveSchema(n.ctx, &types.Schema{
			UID:        uid,
			Definition: definition,
		}); err != nil {
			return err
		}
		log.WithField("uid", uid.Hex()).Info("Registered canonical schema")
	}
	return nil
}

// ScanSchemaUID returns the uid every scan submission attestation uses.
func ScanSchemaUID() types.UID {
	return types.SchemaUID(scanSchemaDefinition, "", false)
}

// ChallengeSchemaUID returns the uid every challenge attestation uses.
func ChallengeSchemaUID() types.UID {
	return types.SchemaUID(challengeSchemaDefinition, "", false)
}

// ResolutionSchemaUID returns the uid every resolution attestation uses.
func ResolutionSchemaUID() types.UID {
	return types.SchemaUID(resolutionSchemaDefinition, "", false)
}

func (n *LedgerNode) registerAttestorService(operator types.Principal) error {
	return n.services.RegisterService(attestor.New(n.ctx, &attestor.ServiceConfig{
		Database: n.db,
		Feed:     n.ledgerFeed,
		Operator: operator,
	}))
}

func (n *LedgerNode) registerStakeService() error {
	return n.services.RegisterService(stake.New(n.ctx, &stake.ServiceConfig{
		Database: n.db,
		Feed:     n.ledgerFeed,
	}))
}

func (n *LedgerNode) registerSubmissionService(operator types.Principal) error {
	return n.services.RegisterService(submission.New(n.ctx, &submission.ServiceConfig{
		Database:      n.db,
		Feed:          n.ledgerFeed,
		ScanSchemaUID: ScanSchemaUID(),
		Operator:      operator,
	}))
}

func (n *LedgerNode) registerChallengeService() error {
	return n.services.RegisterService(challenge.New(n.ctx, &challenge.ServiceConfig{
		Database:            n.db,
		Feed:                n.ledgerFeed,
		ChallengeSchemaUID:  ChallengeSchemaUID(),
		ResolutionSchemaUID: ResolutionSchemaUID(),
	}))
}

func (n *LedgerNode) registerRPCService(cliCtx *cli.Context) error {
	return n.services.RegisterService(rpc.New(n.ctx, &rpc.ServiceConfig{
		Database: n.db,
		Host:     cliCtx.String(flags.RPCHost.Name),
		Port:     cliCtx.Int(flags.RPCPort.Name),
	}))
}

func (n *LedgerNode) registerPrometheusService(cliCtx *cli.Context) error {
	logrus.AddHook(prometheus.NewLogrusCollector())
	return n.services.RegisterService(prometheus.NewPrometheusService(
		fmt.Sprintf(":%d", cliCtx.Int(flags.MonitoringPortFlag.Name)),
		n.services,
	))
}

// LedgerFeed returns the feed every mutating operation publishes to.
func (n *LedgerNode) LedgerFeed() *event.Feed {
	return n.ledgerFeed
}

// Start the ledger node and kick off every registered service.
func (n *LedgerNode) Start() {
	n.lock.Lock()
	n.services.StartAll()
	n.lock.Unlock()

	stop := n.stop
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the ledger node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *LedgerNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	log.Info("Stopping ledger node")
	n.services.StopAll()
	if err := n.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}
	n.cancel()
	close(n.stop)
}
