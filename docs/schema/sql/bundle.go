// Package sqldocs embeds the dataset schema DDL for each supported dialect.
package sqldocs

import _ "embed"

// SQLite is the SQLite DDL for datasets and dataset_rows.
//
//go:embed sqlite.sql
var SQLite string

// Postgres is the Postgres DDL for datasets and dataset_rows.
//
//go:embed postgres.sql
var Postgres string
