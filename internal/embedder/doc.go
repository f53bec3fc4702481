// Package embedder turns symbol documents into vectors for semantic search.
//
// Remote providers (Jina AI, OpenAI, or any OpenAI compatible endpoint) are
// called in batches of at most MaxBatchSize with exponential backoff. When no
// API key is configured the local provider embeds text offline using signed
// feature hashing over identifier words, so semantic search keeps working
// with reduced quality.
//
// All providers share an LRU cache keyed by the xxhash of the input text.
//
//	emb, err := embedder.New(embedder.Config{OpenAIKey: key})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{doc1.Text, doc2.Text},
//	})
package embedder
