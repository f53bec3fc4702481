// Package chunker builds the text that gets embedded for each symbol.
//
// One document is produced per symbol. It carries a header (language, kind,
// qualified name, file path, split identifier terms), the doc comment and
// the symbol's source lines:
//
//	go method Server.Handle
//	file: internal/mcp/server.go
//	terms: handle
//	Handle dispatches one request.
//
//	func (s *Server) Handle(ctx context.Context, req *Request) *Response {
//	...
//
// Documents are capped at MaxTokensPerChunk tokens using the chars/4
// heuristic. ContentHash is the xxhash of the final text and lets the
// embedder cache skip unchanged documents.
package chunker
