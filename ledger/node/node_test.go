package node

import (
	"context"
	"flag"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/pierce403/nweb-next/ledger/challenge"
	"github.com/pierce403/nweb-next/ledger/submission"
	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/cmd"
	"github.com/pierce403/nweb-next/shared/prometheus"
)

// Test that the node builds its full service graph from CLI flags alone:
// canonical schemas persisted, domain services registered, and the log
// metrics hook installed on the global logger.
func TestNew(t *testing.T) {
	app := cli.App{}
	set := flag.NewFlagSet("test", 0)
	set.String(cmd.DataDirFlag.Name, t.TempDir(), "node data directory")
	cliCtx := cli.NewContext(&app, set, nil)

	node, err := New(cliCtx)
	require.NoError(t, err)
	defer node.Close()

	ctx := context.Background()
	for _, uid := range []struct {
		name string
		uid  types.UID
	}{
		{"scan", ScanSchemaUID()},
		{"challenge", ChallengeSchemaUID()},
		{"resolution", ResolutionSchemaUID()},
	} {
		schema, err := node.db.Schema(ctx, uid.uid)
		require.NoError(t, err)
		require.NotNil(t, schema, "%s schema must be registered at boot", uid.name)
	}

	var submissionSrv *submission.Service
	require.NoError(t, node.services.FetchService(&submissionSrv))
	var challengeSrv *challenge.Service
	require.NoError(t, node.services.FetchService(&challengeSrv))

	var hooked bool
	for _, hook := range logrus.StandardLogger().Hooks[logrus.InfoLevel] {
		if _, ok := hook.(*prometheus.LogrusCollector); ok {
			hooked = true
		}
	}
	require.True(t, hooked, "log entry counts must be collected")
}
