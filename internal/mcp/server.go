package mcp

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/adi-family/llm-code-indexer-mcp/internal/engine"
)

const (
	// ServerName is reported in serverInfo
	ServerName = "adi-mcp"
	// ProtocolVersion is the MCP revision this server speaks
	ProtocolVersion = "2024-11-05"
)

// Version is the server version, set at build time
var Version = "0.1.0"

// Protocol methods
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "initialized"
	MethodPing                   = "ping"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodResourcesList          = "resources/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodPromptsList            = "prompts/list"
	MethodPromptsGet             = "prompts/get"
	MethodCompletionComplete     = "completion/complete"
)

// Session is the per-process protocol state. The engine is nil until an
// initialize call opens one.
type Session struct {
	engine        engine.Engine
	projectPath   string
	subscriptions map[string]struct{}
}

func newSession() *Session {
	return &Session{projectPath: ".", subscriptions: make(map[string]struct{})}
}

// Ready reports whether an engine is open
func (s *Session) Ready() bool {
	return s.engine != nil
}

// Server dispatches protocol requests against one Session. Requests are
// handled one at a time.
type Server struct {
	mu      sync.Mutex
	session *Session
	open    engine.Opener
	logger  *zap.Logger
	version string
	maxLine int
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProjectPath sets the root opened by an initialize call without rootUri
func WithProjectPath(root string) Option {
	return func(s *Server) {
		if root != "" {
			s.session.projectPath = root
		}
	}
}

// WithMaxLineSize bounds the length of one input line in bytes
func WithMaxLineSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLine = n
		}
	}
}

// WithVersion overrides the reported server version
func WithVersion(version string) Option {
	return func(s *Server) {
		if version != "" {
			s.version = version
		}
	}
}

// NewServer creates a server that opens engines with open
func NewServer(open engine.Opener, opts ...Option) *Server {
	s := &Server{
		session: newSession(),
		open:    open,
		logger:  zap.NewNop(),
		version: Version,
		maxLine: MaxLineSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type handlerFunc func(s *Server, ctx context.Context, params json.RawMessage) (any, *RPCError)

var handlers = map[string]handlerFunc{
	MethodInitialize:             (*Server).handleInitialize,
	MethodInitialized:            (*Server).handleEmpty,
	MethodPing:                   (*Server).handleEmpty,
	MethodToolsList:              (*Server).handleToolsList,
	MethodToolsCall:              (*Server).handleToolsCall,
	MethodResourcesList:          (*Server).handleResourcesList,
	MethodResourcesRead:          (*Server).handleResourcesRead,
	MethodResourcesSubscribe:     (*Server).handleSubscribe,
	MethodResourcesUnsubscribe:   (*Server).handleUnsubscribe,
	MethodResourcesTemplatesList: (*Server).handleTemplatesList,
	MethodPromptsList:            (*Server).handlePromptsList,
	MethodPromptsGet:             (*Server).handlePromptsGet,
	MethodCompletionComplete:     (*Server).handleCompletion,
}

// Handle runs one request to completion and builds its response
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &Response{JSONRPC: jsonrpcVersion, ID: req.ID}

	handler, ok := handlers[req.Method]
	if !ok {
		resp.Error = newRPCError(ErrorCodeMethodNotFound, "Method not found: "+req.Method)
		return resp
	}

	result, rpcErr := handler(s, ctx, req.Params)
	if rpcErr != nil {
		s.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.Int("code", rpcErr.Code),
			zap.String("message", rpcErr.Message),
		)
		resp.Error = rpcErr
		return resp
	}
	if result == nil {
		result = struct{}{}
	}
	resp.Result = result
	return resp
}

// Close releases the session's engine
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.engine == nil {
		return nil
	}
	err := s.session.engine.Close()
	s.session.engine = nil
	return err
}

// Subscriptions returns the subscribed resource URIs, sorted
func (s *Server) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uris := make([]string, 0, len(s.session.subscriptions))
	for uri := range s.session.subscriptions {
		uris = append(uris, uri)
	}
	slices.Sort(uris)
	return uris
}

// Ready reports whether initialize has opened an engine
func (s *Server) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Ready()
}

func (s *Server) handleEmpty(context.Context, json.RawMessage) (any, *RPCError) {
	return struct{}{}, nil
}

type capabilityFlags struct {
	ListChanged bool `json:"listChanged"`
}

type resourceCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

type serverCapabilities struct {
	Tools     capabilityFlags    `json:"tools"`
	Resources resourceCapability `json:"resources"`
	Prompts   capabilityFlags    `json:"prompts"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    serverCapabilities `json:"capabilities"`
	ServerInfo      serverInfo         `json:"serverInfo"`
}

// handleInitialize opens the engine for rootUri. Failing to open is logged
// and the capabilities are returned anyway; a previously open engine stays
// in place.
func (s *Server) handleInitialize(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	params := asObject(raw)
	if uri, ok := params.str("rootUri"); ok {
		s.session.projectPath = strings.TrimPrefix(uri, "file://")
	}

	eng, err := s.open(ctx, s.session.projectPath)
	if err != nil {
		s.logger.Error("failed to initialize engine",
			zap.String("project", s.session.projectPath),
			zap.Error(err),
		)
	} else {
		if prev := s.session.engine; prev != nil {
			if err := prev.Close(); err != nil {
				s.logger.Warn("failed to close previous engine", zap.Error(err))
			}
		}
		s.session.engine = eng
		s.logger.Info("engine initialized", zap.String("project", eng.ProjectPath()))
	}

	return initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: serverCapabilities{
			Tools:     capabilityFlags{ListChanged: false},
			Resources: resourceCapability{Subscribe: true, ListChanged: true},
			Prompts:   capabilityFlags{ListChanged: false},
		},
		ServerInfo: serverInfo{Name: ServerName, Version: s.version},
	}, nil
}

// requireEngine returns the open engine or err when there is none
func (s *Server) requireEngine(err *RPCError) (engine.Engine, *RPCError) {
	if s.session.engine == nil {
		return nil, err
	}
	return s.session.engine, nil
}

func (s *Server) handleSubscribe(_ context.Context, raw json.RawMessage) (any, *RPCError) {
	uri, rpcErr := requireURI(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	s.session.subscriptions[uri] = struct{}{}
	s.logger.Info("subscribed to resource", zap.String("uri", uri))
	return struct{}{}, nil
}

func (s *Server) handleUnsubscribe(_ context.Context, raw json.RawMessage) (any, *RPCError) {
	uri, rpcErr := requireURI(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	delete(s.session.subscriptions, uri)
	s.logger.Info("unsubscribed from resource", zap.String("uri", uri))
	return struct{}{}, nil
}

func requireURI(raw json.RawMessage) (string, *RPCError) {
	params, rpcErr := requireParams(raw)
	if rpcErr != nil {
		return "", rpcErr
	}
	uri, ok := params.str("uri")
	if !ok {
		return "", errMissingURI
	}
	return uri, nil
}
