// Package storage provides the call journal for the funcgate package.
//
// This package includes:
//   - GormStorage: a GORM-based core.Journal supporting SQLite and PostgreSQL
//   - Recorder: queues a record for every finished gateway call and writes it in the background
//   - Pruner: deletes records past their retention on a schedule
//
// Open picks the GORM driver from the DSN.
package storage
