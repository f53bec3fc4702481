package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// SearchVector ranks the project's embedded symbols by cosine similarity to
// vector. Embeddings with a different dimension are skipped.
func (s *queries) SearchVector(ctx context.Context, projectID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	query := `
		SELECT s.id, e.vector
		FROM embeddings e
		INNER JOIN symbols s ON e.symbol_id = s.id
		INNER JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ? AND e.dimension = ?
	`
	args := []any{projectID, len(queryVector)}
	query, args = applyFilters(query, args, filters)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, filters)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)

	return buildVectorResults(candidates, limit), nil
}

// SearchText performs BM25 full-text search over symbol names, split name
// terms, signatures and doc comments.
func (s *queries) SearchText(ctx context.Context, projectID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	match := sanitizeFTSQuery(query)
	if match == "" {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT s.id, bm25(symbols_fts, 10.0, 5.0, 2.0, 1.0) AS score
		FROM symbols_fts
		INNER JOIN symbols s ON symbols_fts.rowid = s.id
		INNER JOIN files f ON s.file_id = f.id
		WHERE symbols_fts MATCH ?
		AND f.project_id = ?
	`
	args := []any{match, projectID}
	sqlQuery, args = applyFilters(sqlQuery, args, filters)

	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTextResults(rows, filters)
}

// SearchSymbolNames returns candidates whose name matches query by FTS prefix
// or by substring. Ranking is left to the caller.
func (s *queries) SearchSymbolNames(ctx context.Context, projectID int64, query string, limit int) ([]*Symbol, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*Symbol{}, nil
	}

	sqlQuery := `SELECT ` + symbolColumns + `
		FROM symbols s JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ?
		AND (s.name LIKE ? ESCAPE '\'`
	args := []any{projectID, "%" + escapeLike(query) + "%"}

	if match := sanitizeNameQuery(query); match != "" {
		sqlQuery += ` OR s.id IN (SELECT rowid FROM symbols_fts WHERE symbols_fts MATCH ?)`
		args = append(args, match)
	}
	sqlQuery += `)
		ORDER BY length(s.name), s.name, f.path, s.start_line
		LIMIT ?`
	args = append(args, limit)

	return s.listSymbols(ctx, sqlQuery, args...)
}

// applyFilters adds WHERE clause filters shared by vector and text search
func applyFilters(query string, args []any, filters *SearchFilters) (string, []any) {
	if filters == nil {
		return query, args
	}

	if len(filters.Kinds) > 0 {
		query += " AND s.kind IN (" + placeholders(len(filters.Kinds)) + ")"
		for _, kind := range filters.Kinds {
			args = append(args, string(kind))
		}
	}

	if len(filters.Languages) > 0 {
		query += " AND f.language IN (" + placeholders(len(filters.Languages)) + ")"
		for _, lang := range filters.Languages {
			args = append(args, string(lang))
		}
	}

	if filters.FilePattern != "" {
		query += " AND f.path GLOB ?"
		args = append(args, filters.FilePattern)
	}

	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, filters *SearchFilters) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var symbolID int64
		var vectorBlob []byte
		if err := rows.Scan(&symbolID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue
		}

		similarity := cosineSimilarity(queryVector, vector)
		if filters != nil && filters.MinRelevance > 0 && similarity < filters.MinRelevance {
			continue
		}

		candidates = append(candidates, candidate{symbolID: symbolID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults creates the top limit results; limit <= 0 keeps all
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			SymbolID:        candidates[i].symbolID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// collectTextResults processes text search results and normalizes scores
func collectTextResults(rows *sql.Rows, filters *SearchFilters) ([]TextResult, error) {
	results := make([]TextResult, 0)

	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.SymbolID, &result.BM25Score); err != nil {
			return nil, err
		}

		// bm25() is negative, lower is better
		result.BM25Score = 1.0 / (1.0 + math.Abs(result.BM25Score)/50.0)

		if filters != nil && filters.MinRelevance > 0 && result.BM25Score < filters.MinRelevance {
			continue
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

type candidate struct {
	symbolID int64
	score    float64
}

// sortCandidates sorts by score descending, ties by id for stable output
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].symbolID < candidates[j].symbolID
	})
}

// sanitizeFTSQuery turns free text into an FTS5 expression. Every word
// becomes a quoted prefix term and terms are OR-ed, so no user input reaches
// the FTS5 query syntax.
func sanitizeFTSQuery(query string) string {
	words := types.SplitIdentifier(query)
	if len(words) == 0 {
		return ""
	}
	terms := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " OR ")
}

// sanitizeNameQuery restricts a prefix query to the name and terms columns
func sanitizeNameQuery(query string) string {
	match := sanitizeFTSQuery(query)
	if match == "" {
		return ""
	}
	return "{name terms} : (" + match + ")"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
