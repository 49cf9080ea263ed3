// Package db defines the ledger's database access layer.
package db

import "github.com/pierce403/nweb-next/ledger/db/iface"

// ReadOnlyDatabase exposes the ledger's DB read only functions for all ledger buckets.
type ReadOnlyDatabase = iface.ReadOnlyDatabase

// WriteAccessDatabase exposes the ledger's DB writing functions for all ledger buckets.
type WriteAccessDatabase = iface.WriteAccessDatabase

// FullAccessDatabase exposes the ledger's DB write and read functions for all ledger buckets.
type FullAccessDatabase = iface.FullAccessDatabase

// Database defines the necessary methods for the ledger's DB which may be implemented by any
// key-value or relational database in practice. This is the full database interface which should
// not be used often. Prefer a more restrictive interface in this package.
type Database = iface.Database
