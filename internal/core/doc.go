// Package core provides the business logic for bulk donation imports.
//
// This package contains the import pipeline independent of any transport or
// storage technology. It is used by the HTTP server, the donation-import CLI
// and tests without modification.
//
// # Pipeline
//
// [Service.ImportDonations] runs one upload end to end:
//
//  1. Parsing: every CSV row is validated independently by [ParseRow]. A bad
//     row is recorded as "Row N: reason" and never aborts the run.
//  2. Resolving donors: each distinct donor email is looked up or created once
//     per run through a run-local [donorCache].
//  3. Writing batch: all candidates are persisted by one batch insert.
//  4. Aggregating: raised amounts are rolled up per campaign and campaigns
//     that reach their goal move from ACTIVE to COMPLETED.
//
// Stages 2-4 run inside a single [Store.WithinTx] call. If any of them fails
// nothing is committed and the result carries one "Row 0: Failed to process
// file: <cause>" entry.
//
// # Storage
//
// Persistence is reached only through the [Store] and [Tx] interfaces.
// Implementations live in internal/storage/postgres and internal/storage/sqlite.
//
// # Error Handling
//
// Request-level errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IMP001-IMP010: Import request errors (empty file, wrong type, busy, bad history query)
//   - DB001-DB005: Database errors (constraints, connections, locks)
//   - RATE001: Rate limiting
package core
