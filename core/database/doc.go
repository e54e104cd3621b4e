// Package database handles database connections and schema inspection.
//
// It wraps GORM to open the repository database with either the MySQL or the
// SQLite driver, chosen by Config.Driver.
//
// # Connect
//
// Connect builds the dialector, applies pool settings and pings the database
// within the configured timeout. SQLite connections are limited to a single
// open connection.
//
// # Schema Inspection
//
// GetTableColumns lists a table's columns on either dialect. The integrity
// feature uses it to compare the live schema against the repository models.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return err
//	}
//
//	columns, err := database.GetTableColumns(db, "nodes")
package database
