// Package journal records processing history in SQLite.
//
// Each pipeline request appends one row to the runs table whether it
// succeeded or failed. The daemon prunes rows older than
// pipeline.history_retention_days at start-up and the CLI renders the most
// recent rows through the history command.
package journal
