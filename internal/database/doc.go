// Package database manages the relational backend used by checkpoint
// persistence. It opens a GORM connection for the configured dialect
// (sqlite, mysql or postgres), applies connection pool limits, and runs a
// periodic health check.
package database
