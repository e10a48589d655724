package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

// Server exposes the question pipeline as an MCP tool over stdio so
// editor and agent clients can query the spec library directly.
type Server struct {
	askService ports.QuestionService
	mcpServer  *server.MCPServer
}

func NewServer(askService ports.QuestionService, version string) *Server {
	s := &Server{askService: askService}

	mcpServer := server.NewMCPServer(
		"specqa",
		version,
		server.WithToolCapabilities(false),
	)

	askTool := mcp.NewTool(
		"ask",
		mcp.WithDescription("Answer a question about indexed steel and material specification documents, with cited sources and a confidence score."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural-language question, e.g. 'What is the minimum yield strength of S32205 per ASTM A790?'"),
		),
	)
	mcpServer.AddTool(askTool, s.handleAsk)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.askService.Ask(ctx, question)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("answer question: %w", err)
	}

	return mcp.NewToolResultText(renderAnswer(answer)), nil
}

func renderAnswer(answer *domain.Answer) string {
	var b strings.Builder
	b.WriteString(answer.Text)

	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, src := range answer.Sources {
			if src.Page > 0 {
				fmt.Fprintf(&b, "[%d] %s, page %d\n", src.Ref, src.Document, src.Page)
				continue
			}
			fmt.Fprintf(&b, "[%d] %s\n", src.Ref, src.Document)
		}
	}

	fmt.Fprintf(&b, "\nConfidence: %d/100 (retrieval %d, grounding %d, coherence %d)",
		answer.Confidence.Overall,
		answer.Confidence.Retrieval,
		answer.Confidence.Grounding,
		answer.Confidence.Coherence,
	)
	return b.String()
}
