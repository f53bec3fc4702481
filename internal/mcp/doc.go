// Package mcp implements the Model Context Protocol server for the code index.
//
// The server speaks JSON-RPC 2.0 over line-delimited stdio. Each non-blank
// input line is one request and produces exactly one response line:
//
//	→ {"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search","arguments":{"query":"parse config"}}}
//	← {"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"[...]"}]}}
//
// # Session
//
// A Server owns one Session. The index engine is opened by initialize using
// the rootUri parameter; until then tools/call, resources/read and
// prompts/get fail with -32603, while the static catalogs (tools/list,
// prompts/list, resources/templates/list) are always served. A failed open
// does not fail initialize.
//
// Requests are handled strictly one at a time under a single lock, so a long
// index run blocks the requests behind it.
//
// # Resources
//
//	adi://status          index statistics
//	adi://tree            every indexed file with its symbols
//	adi://config          the merged project configuration
//	adi://file/{path}     file metadata, symbols and live content
//	adi://symbol/{id}     a symbol with its callers and callees
//
// resources/subscribe and resources/unsubscribe only record interest; no
// change notifications are sent.
//
// # Errors
//
//   - -32700: the line is not a JSON-RPC request (id is null)
//   - -32601: unknown method
//   - -32602: missing or malformed params, unknown tool, prompt or URI
//   - -32603: engine not initialized, or the engine failed
package mcp
