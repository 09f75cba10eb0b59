// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for the orders table.
//
//go:embed schema.sql
var Schema string
