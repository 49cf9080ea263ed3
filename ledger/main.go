// Package main defines the nweb ledger node: an attestation-backed staking,
// submission and slashing ledger for a peer-operated network-scan data
// network. The node records attested scan submissions, meters them against
// staked quota, and coordinates the dispute lifecycle of challenged bundles.
package main

import (
	"fmt"
	"os"
	goruntime "runtime"

	joonix "github.com/joonix/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/pierce403/nweb-next/ledger/flags"
	"github.com/pierce403/nweb-next/ledger/node"
	"github.com/pierce403/nweb-next/shared/cmd"
	"github.com/pierce403/nweb-next/shared/logutil"
	"github.com/pierce403/nweb-next/shared/version"
)

var log = logrus.WithField("prefix", "main")

func startNode(cliCtx *cli.Context) error {
	verbosity := cliCtx.String(cmd.VerbosityFlag.Name)
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	ledger, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	ledger.Start()
	return nil
}

var appFlags = []cli.Flag{
	cmd.VerbosityFlag,
	cmd.DataDirFlag,
	cmd.LogFileName,
	cmd.LogFormat,
	cmd.ClearDB,
	cmd.ConfigFileFlag,
	flags.RPCHost,
	flags.RPCPort,
	flags.MonitoringPortFlag,
	flags.OperatorFlag,
}

func main() {
	app := cli.App{}
	app.Name = "nweb-ledger"
	app.Usage = "launches the nweb staking and slashing ledger node"
	app.Version = version.GetVersion()
	app.Flags = appFlags
	app.Action = startNode
	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(cmd.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					cmd.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		format := ctx.String(cmd.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as Gibberish in the log files.
			formatter.DisableColors = ctx.String(cmd.LogFileName.Name) != ""
			logrus.SetFormatter(formatter)
		case "fluentd":
			logrus.SetFormatter(joonix.NewFormatter())
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		logFileName := ctx.String(cmd.LogFileName.Name)
		if logFileName != "" {
			if err := logutil.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}

		goruntime.GOMAXPROCS(goruntime.NumCPU())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
