// Package storage provides SQLite-based persistence for the code index.
//
// The storage layer manages:
//   - Project metadata
//   - Files with their language and xxhash content fingerprint
//   - Extracted symbols and their FTS5 index
//   - The call reference graph
//   - Per-symbol vector embeddings
//   - Imports
//
// # Database Schema
//
// Tables:
//   - projects: one row per indexed root
//   - files: relative paths, language, fingerprint, size
//   - symbols: declarations with position, signature and doc comment
//   - symbols_fts: external content FTS5 table over name, split name terms,
//     signature and doc comment, kept in sync by triggers
//   - refs: call sites; callee_symbol_id is filled by ResolveReferences
//   - embeddings: little-endian float32 vectors keyed by symbol
//   - imports: import statements per file
//
// Deleting a file cascades to its symbols, references, embeddings and
// imports. References pointing into a deleted file fall back to unresolved.
//
// # Drivers
//
// The default build uses modernc.org/sqlite (no cgo). Building with
// -tags "sqlite_cgo sqlite_fts5" switches to github.com/mattn/go-sqlite3.
//
// # Transactions
//
// Every Storage operation is also available on a Tx and runs on the
// transaction's connection:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	if err := tx.DeleteSymbolsByFile(ctx, file.ID); err != nil {
//	    return err
//	}
//	return tx.Commit()
package storage
