package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

// TextKeyScheme prefixes generated keys for ingested text.
const TextKeyScheme = "text://"

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query  string            `json:"query" jsonschema:"the question or text to find related passages for"`
	TopK   int               `json:"top_k,omitempty" jsonschema:"maximum number of passages to return"`
	Filter map[string]string `json:"filter,omitempty" jsonschema:"exact-match filter on document_key, content_type or metadata fields"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Hits    []HitOutput `json:"hits"`
	Count   int         `json:"count"`
	Context string      `json:"context"`
}

// HitOutput represents a single retrieved passage.
type HitOutput struct {
	ChunkID     string  `json:"chunk_id"`
	DocumentKey string  `json:"document_key"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Text        string  `json:"text"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	Text     string            `json:"text" jsonschema:"the text to index"`
	Key      string            `json:"key,omitempty" jsonschema:"stable document key; generated when omitted"`
	Name     string            `json:"name,omitempty" jsonschema:"human readable document name"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"metadata attached to every chunk"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

// RemoveInput is the input schema for the remove_document tool.
type RemoveInput struct {
	Key string `json:"key" jsonschema:"the document key to delete"`
}

// RemoveOutput is the output schema for the remove_document tool.
type RemoveOutput struct {
	Key     string `json:"key"`
	Removed int    `json:"removed"`
}

// CountInput is the empty input of count_chunks.
type CountInput struct{}

// CountOutput is the output schema for the count_chunks tool.
type CountOutput struct {
	Count int64 `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve the passages most similar to a query from the indexed documents",
	}, s.handleRetrieve)

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Split, embed and index a piece of text",
		}, s.handleIngestText)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "remove_document",
			Description: "Delete every indexed chunk of a document",
		}, s.handleRemove)
	}

	if s.ports.Index != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "count_chunks",
			Description: "Count the chunks stored in the vector memory",
		}, s.handleCount)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	var filter domain.Filter
	if len(input.Filter) > 0 {
		filter = make(domain.Filter, len(input.Filter))
		for k, v := range input.Filter {
			filter[k] = v
		}
	}

	hits, err := s.ports.Retriever.Retrieve(ctx, input.Query, topK, filter)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Hits:    make([]HitOutput, len(hits)),
		Count:   len(hits),
		Context: services.FormatHits(hits),
	}
	for i := range hits {
		output.Hits[i] = HitOutput{
			ChunkID:     hits[i].ChunkID,
			DocumentKey: hits[i].Document.Key,
			Name:        hits[i].Document.Name(),
			Score:       hits[i].Score,
			Text:        hits[i].Text,
		}
	}

	return nil, output, nil
}

// handleIngestText handles the ingest_text tool invocation.
func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		key = TextKeyScheme + uuid.NewString()
	}

	opts := domain.DefaultIngestOptions()
	if len(input.Metadata) > 0 {
		opts.DefaultMetadata = make(domain.Metadata, len(input.Metadata))
		for k, v := range input.Metadata {
			opts.DefaultMetadata[k] = v
		}
	}

	doc := domain.DocumentReference{Key: key, DisplayName: input.Name, ContentType: "text/plain"}
	res, err := s.ports.Ingestion.IngestText(ctx, doc, input.Text, &opts, nil)
	if err != nil {
		return nil, IngestTextOutput{}, err
	}

	return nil, IngestTextOutput{Key: key, Status: string(res.Status), Chunks: res.Chunks}, nil
}

// handleRemove handles the remove_document tool invocation.
// Removed is reported only when an index is available to count chunks.
func (s *Server) handleRemove(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RemoveInput,
) (*mcp.CallToolResult, RemoveOutput, error) {
	removed := 0
	if s.ports.Index != nil && input.Key != "" {
		ids, err := s.ports.Index.ChunkIDs(ctx, input.Key)
		if err != nil {
			return nil, RemoveOutput{}, fmt.Errorf("listing chunks: %w", err)
		}
		removed = len(ids)
	}

	if err := s.ports.Ingestion.Remove(ctx, input.Key); err != nil {
		return nil, RemoveOutput{}, err
	}
	return nil, RemoveOutput{Key: input.Key, Removed: removed}, nil
}

// handleCount handles the count_chunks tool invocation.
func (s *Server) handleCount(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ CountInput,
) (*mcp.CallToolResult, CountOutput, error) {
	n, err := s.ports.Index.Count(ctx)
	if err != nil {
		return nil, CountOutput{}, fmt.Errorf("counting chunks: %w", err)
	}
	return nil, CountOutput{Count: n}, nil
}
