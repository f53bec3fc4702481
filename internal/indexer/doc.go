// Package indexer keeps a project's index in step with its source tree.
//
// A run walks the project root, skipping paths matched by the exclude globs
// and files over the size limit, and fingerprints every remaining file with
// xxhash. Files whose fingerprint matches the stored one are skipped; the
// rest are parsed in parallel and stored in transactions of BatchSize files.
// Files that disappeared are deleted. Call references are then re-resolved by
// name across the project, preferring a symbol in the caller's own file, and
// symbols without a vector are embedded.
//
//	idx := indexer.New(store, emb, logger.Named("indexer"))
//	stats, err := idx.IndexProject(ctx, project, &indexer.Config{Index: cfg.Index})
//
// Only one run may be active per Indexer; a concurrent call returns
// ErrIndexingInProgress.
package indexer
