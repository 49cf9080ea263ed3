// Package flags contains the command line flags specific to the ledger node.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// RPCHost defines the address the query API listens on.
	RPCHost = &cli.StringFlag{
		Name:  "rpc-host",
		Usage: "Host on which the query API listens",
		Value: "127.0.0.1",
	}
	// RPCPort defines the port the query API listens on.
	RPCPort = &cli.IntFlag{
		Name:  "rpc-port",
		Usage: "Port on which the query API listens",
		Value: 4000,
	}
	// MonitoringPortFlag defines the metrics endpoint port.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used by prometheus for metrics",
		Value: 8080,
	}
	// OperatorFlag names the principal allowed to register schemas and edit
	// the dataset cost table.
	OperatorFlag = &cli.StringFlag{
		Name:  "operator",
		Usage: "Principal (0x-hex address) with schema registration and pricing rights",
	}
)
