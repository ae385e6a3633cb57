// Package db embeds the SQL schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for all application tables. Statements are idempotent
// (CREATE ... IF NOT EXISTS) so the schema can be applied on every boot.
//
//go:embed migrations/001_schema.sql
var Schema string
