package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the uploaded documents"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	Confidence float64  `json:"confidence"`
	Status     string   `json:"status"`
	Refused    bool     `json:"refused"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the query to match against indexed chunks"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is a single retrieved chunk.
type SearchResultOutput struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkID      string  `json:"chunk_id"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the uploaded documents, with citations. Refuses when the documents do not cover the question.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the most relevant document chunks for a query, without answer generation",
	}, s.handleSearch)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer := s.ragService.AskQuestion(ctx, input.Question)

	citations := answer.Citations
	if citations == nil {
		citations = []string{}
	}
	return nil, AskOutput{
		Answer:     answer.Text,
		Citations:  citations,
		Confidence: answer.Confidence,
		Status:     string(answer.Status),
		Refused:    answer.Refused,
	}, nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	result, err := s.ragService.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(result.Matches)),
		Count:   len(result.Matches),
	}
	for i, m := range result.Matches {
		output.Results[i] = SearchResultOutput{
			DocumentID:   m.Chunk.DocId,
			DocumentName: m.DocName,
			ChunkID:      m.Chunk.ChunkId,
			Score:        m.Score,
			Content:      m.Chunk.Text,
		}
	}
	return nil, output, nil
}
