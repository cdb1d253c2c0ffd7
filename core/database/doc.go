// Package database handles database connections and schema inspection.
//
// It wraps GORM and opens MySQL, PostgreSQL or SQLite connections depending on the
// configured driver. The same connection serves the history tables being watched and the
// tracker/ledger tables owned by the forwarder.
//
// # Schema Inspection
//
// GetTableColumns lists the columns of a table on every supported dialect. The history
// store uses it to check that configured entity profiles point at real columns before a
// run starts.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "community_historicalcommunity")
package database
