package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for sercha-rag resources.
const uriScheme = "sercha-rag://"

// registerResources registers the index resources when an index is available.
func (s *Server) registerResources() {
	if s.ports.Index == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Chunk count and embedding dimensions of the vector memory",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	// Keys contain slashes, so clients path-escape them.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{key}/chunks",
		Name:        "document-chunks",
		Description: "Chunk IDs stored for a document key",
		MIMEType:    "application/json",
	}, s.handleChunksResource)
}

// handleStatsResource reports the size of the vector memory.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	n, err := s.ports.Index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}

	stats := struct {
		Chunks     int64 `json:"chunks"`
		Dimensions int   `json:"dimensions"`
	}{Chunks: n, Dimensions: s.ports.Index.Dimensions()}

	return jsonResource(req.Params.URI, stats)
}

// handleChunksResource lists the chunk IDs of one document.
func (s *Server) handleChunksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	key := extractDocumentKey(req.Params.URI)
	if key == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	ids, err := s.ports.Index.ChunkIDs(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	if len(ids) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return jsonResource(req.Params.URI, ids)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentKey extracts the unescaped key from a URI like
// sercha-rag://documents/{key}/chunks.
func extractDocumentKey(uri string) string {
	const prefix = uriScheme + "documents/"
	const suffix = "/chunks"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	escaped := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	key, err := url.PathUnescape(escaped)
	if err != nil {
		return ""
	}
	return key
}
