// Package store persists channels, events and pipeline jobs in SQLite.
//
// The Store owns connection setup, schema initialization and busy retries.
// Events are deduplicated on (channel, month, day, year, title) with an
// explicit pre-check that reports an InsertOutcome; a unique index backs the
// same rule. Jobs are mutated by pipeline stages only through LoadWork,
// CommitStage and MarkFailed so every status transition and error log write
// goes through one place.
//
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt a new schema.
package store
