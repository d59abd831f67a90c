// Package migrations embeds the goose migration files for each SQL backend.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SQLite embed.FS

//go:embed clickhouse/*.sql
var ClickHouse embed.FS
