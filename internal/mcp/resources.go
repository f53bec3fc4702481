package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/adi-family/llm-code-indexer-mcp/internal/engine"
	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// Resource URIs
const (
	URIStatus       = "adi://status"
	URITree         = "adi://tree"
	URIConfig       = "adi://config"
	URIFilePrefix   = "adi://file/"
	URISymbolPrefix = "adi://symbol/"

	mimeJSON = "application/json"

	// maxFileResources caps the per-file entries of one listing
	maxFileResources = 100
)

var languageMIME = map[types.Language]string{
	types.LangRust:       "text/x-rust",
	types.LangPython:     "text/x-python",
	types.LangJavaScript: "text/javascript",
	types.LangTypeScript: "text/typescript",
	types.LangTSX:        "text/typescript",
	types.LangJava:       "text/x-java",
	types.LangGo:         "text/x-go",
	types.LangC:          "text/x-c",
	types.LangCpp:        "text/x-c++",
	types.LangCSharp:     "text/x-csharp",
	types.LangRuby:       "text/x-ruby",
	types.LangPhp:        "text/x-php",
	types.LangKotlin:     "text/x-kotlin",
	types.LangScala:      "text/x-scala",
	types.LangSwift:      "text/x-swift",
	types.LangBash:       "text/x-shellscript",
	types.LangJSON:       "application/json",
	types.LangYAML:       "text/yaml",
	types.LangTOML:       "text/x-toml",
	types.LangXML:        "application/xml",
	types.LangHTML:       "text/html",
	types.LangCSS:        "text/css",
	types.LangMarkdown:   "text/markdown",
}

// MIMEType maps a language to its MIME type, text/plain when unmapped
func MIMEType(lang types.Language) string {
	if mime, ok := languageMIME[lang]; ok {
		return mime
	}
	return "text/plain"
}

type resourceList struct {
	Resources []mcp.Resource `json:"resources"`
}

type resourceContents struct {
	Contents []mcp.TextResourceContents `json:"contents"`
}

type templateList struct {
	ResourceTemplates []mcp.ResourceTemplate `json:"resourceTemplates"`
}

func (s *Server) handleResourcesList(ctx context.Context, _ json.RawMessage) (any, *RPCError) {
	eng := s.session.engine
	if eng == nil {
		return resourceList{Resources: []mcp.Resource{}}, nil
	}

	resources := []mcp.Resource{
		mcp.NewResource(URIStatus, "Index Status",
			mcp.WithResourceDescription("Current indexing status and statistics"),
			mcp.WithMIMEType(mimeJSON)),
		mcp.NewResource(URITree, "Project Tree",
			mcp.WithResourceDescription("Hierarchical view of all indexed files and symbols"),
			mcp.WithMIMEType(mimeJSON)),
		mcp.NewResource(URIConfig, "Configuration",
			mcp.WithResourceDescription("Current ADI configuration"),
			mcp.WithMIMEType(mimeJSON)),
	}

	tree, err := eng.GetTree(ctx)
	if err != nil {
		s.logger.Warn("failed to list file resources", zap.Error(err))
		return resourceList{Resources: resources}, nil
	}
	for i, file := range tree.Files {
		if i == maxFileResources {
			break
		}
		resources = append(resources, mcp.NewResource(URIFilePrefix+file.Path, path.Base(file.Path),
			mcp.WithResourceDescription(fmt.Sprintf("%s file with %d symbols", file.Language, len(file.Symbols))),
			mcp.WithMIMEType(MIMEType(file.Language))))
	}
	return resourceList{Resources: resources}, nil
}

func (s *Server) handleResourcesRead(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	uri, rpcErr := requireURI(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	eng, rpcErr := s.requireEngine(errNotInitialized)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var content mcp.TextResourceContents
	switch {
	case uri == URIStatus:
		status, err := eng.Status(ctx)
		if err != nil {
			return nil, internalError(err)
		}
		content, rpcErr = jsonContents(uri, status)
	case uri == URITree:
		tree, err := eng.GetTree(ctx)
		if err != nil {
			return nil, internalError(err)
		}
		content, rpcErr = jsonContents(uri, tree)
	case uri == URIConfig:
		content, rpcErr = jsonContents(uri, eng.Config())
	case strings.HasPrefix(uri, URIFilePrefix):
		content, rpcErr = readFileResource(ctx, eng, uri)
	case strings.HasPrefix(uri, URISymbolPrefix):
		content, rpcErr = readSymbolResource(ctx, eng, uri)
	default:
		return nil, invalidParams("Unknown resource URI: %s", uri)
	}
	if rpcErr != nil {
		return nil, rpcErr
	}
	return resourceContents{Contents: []mcp.TextResourceContents{content}}, nil
}

func jsonContents(uri string, v any) (mcp.TextResourceContents, *RPCError) {
	text, err := prettyJSON(v)
	if err != nil {
		return mcp.TextResourceContents{}, internalError(err)
	}
	return mcp.TextResourceContents{URI: uri, MIMEType: mimeJSON, Text: text}, nil
}

type fileWithContent struct {
	File    engine.File     `json:"file"`
	Symbols []engine.Symbol `json:"symbols"`
	Content string          `json:"content"`
}

// readFileResource returns file metadata merged with the live file content,
// or the metadata alone when the file cannot be read
func readFileResource(ctx context.Context, eng engine.Engine, uri string) (mcp.TextResourceContents, *RPCError) {
	rel := strings.TrimPrefix(uri, URIFilePrefix)
	info, err := eng.GetFile(ctx, rel)
	if err != nil {
		return mcp.TextResourceContents{}, internalError(err)
	}

	var body any = info
	if content, ok := readProjectFile(eng.ProjectPath(), info.File.Path); ok {
		body = fileWithContent{File: info.File, Symbols: info.Symbols, Content: content}
	}
	text, err := prettyJSON(body)
	if err != nil {
		return mcp.TextResourceContents{}, internalError(err)
	}
	return mcp.TextResourceContents{URI: uri, MIMEType: MIMEType(info.File.Language), Text: text}, nil
}

type symbolDetails struct {
	Symbol *engine.Symbol      `json:"symbol"`
	Usage  *engine.SymbolUsage `json:"usage,omitempty"`
}

func readSymbolResource(ctx context.Context, eng engine.Engine, uri string) (mcp.TextResourceContents, *RPCError) {
	id, err := strconv.ParseInt(strings.TrimPrefix(uri, URISymbolPrefix), 10, 64)
	if err != nil {
		return mcp.TextResourceContents{}, invalidParams("Invalid symbol ID")
	}
	sym, err := eng.GetSymbol(ctx, id)
	if err != nil {
		return mcp.TextResourceContents{}, internalError(err)
	}

	details := symbolDetails{Symbol: sym}
	if usage, err := eng.GetSymbolUsage(ctx, id); err == nil {
		details.Usage = usage
	}
	return jsonContents(uri, details)
}

// readProjectFile reads rel under root. Paths escaping root are refused.
func readProjectFile(root, rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	local := filepath.FromSlash(rel)
	if filepath.IsAbs(local) || !filepath.IsLocal(local) {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(root, local))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (s *Server) handleTemplatesList(context.Context, json.RawMessage) (any, *RPCError) {
	return templateList{ResourceTemplates: []mcp.ResourceTemplate{
		mcp.NewResourceTemplate(URIFilePrefix+"{path}", "Source File",
			mcp.WithTemplateDescription("Access indexed source file with symbols and content"),
			mcp.WithTemplateMIMEType(mimeJSON)),
		mcp.NewResourceTemplate(URISymbolPrefix+"{id}", "Symbol Details",
			mcp.WithTemplateDescription("Get detailed information about a symbol by ID"),
			mcp.WithTemplateMIMEType(mimeJSON)),
	}}, nil
}
