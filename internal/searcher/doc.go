// Package searcher ranks indexed symbols and files for a query.
//
// Search runs keyword (FTS5 BM25) and semantic (embedding cosine) retrieval
// concurrently and merges both rankings with Reciprocal Rank Fusion, k = 60.
// If the embedder fails the keyword ranking is returned alone. Responses are
// kept in an expiring LRU cache that the indexer purges after every run.
//
//	s := searcher.New(store, emb)
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    ProjectID: project.ID,
//	    Query:     "parse config file",
//	    Limit:     10,
//	})
//
// SearchSymbols matches names by prefix or substring and reranks candidates
// by Jaro-Winkler similarity. SearchFiles fuzzy-matches file paths.
package searcher
