// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables. Statements
// are written to be idempotent so the schema can be re-applied at startup.
//
//go:embed migrations/001_schema.sql
var Schema string
