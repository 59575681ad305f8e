// Package all wires all built-in storage backends into the storage factory.
//
// Importing it (as a blank import) runs each backend's init, which registers
// its factory and DDL bootstrapper with the storage package:
//
//   - "mysql"    (tripetl/internal/storage/mysql)
//   - "postgres" (tripetl/internal/storage/postgres)
//   - "sqlite"   (tripetl/internal/storage/sqlite)
//   - "mssql"    (tripetl/internal/storage/mssql)
//
// Typical usage:
//
//	import _ "tripetl/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "mysql", DSN: dsn, Table: "trips"})
package all

import (
	_ "tripetl/internal/storage/mssql"
	_ "tripetl/internal/storage/mysql"
	_ "tripetl/internal/storage/postgres"
	_ "tripetl/internal/storage/sqlite"
)
