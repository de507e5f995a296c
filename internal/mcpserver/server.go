// Package mcpserver exposes the engine as MCP tools and resources.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/gyeh/clinscore/internal/engine"
)

// Name is the server name advertised to clients.
const Name = "clinscore"

const instructions = `Healthcare assessment scoring server.
Tools return scored PTSD (PCL-5), PHQ-9, GAD-7, WHO-5 and DERS assessments,
progress trends, composite risk, population comparisons and substance use.
Patient ids are case-insensitive. Results are JSON; a "status" field other
than "ok" marks a not-found, invalid-argument or upstream error.`

// Server binds engine operations to MCP handlers.
type Server struct {
	svc *engine.Service
	log zerolog.Logger
}

// New builds the MCP server with every tool and resource template registered.
func New(svc *engine.Service, log zerolog.Logger, version string) *server.MCPServer {
	s := &Server{svc: svc, log: log}

	m := server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range s.tools() {
		m.AddTool(t.tool, s.handle(t.tool.Name, t.run))
	}
	for _, r := range s.resources() {
		m.AddResourceTemplate(r.template, r.read)
	}
	return m
}

type toolFunc func(ctx context.Context, a args) engine.Result

type toolDef struct {
	tool mcp.Tool
	run  toolFunc
}

// handle adapts run to an MCP handler, logging each call under a fresh
// request id.
func (s *Server) handle(name string, run toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := args(req.GetArguments())
		if a == nil {
			a = args{}
		}
		log := s.log.With().
			Str("request_id", uuid.NewString()).
			Str("tool", name).
			Logger()
		log.Debug().Interface("params", a.redacted()).Msg("tool started")

		start := time.Now()
		r := run(ctx, a)

		ev := log.Info()
		switch r.Status {
		case engine.StatusOK, engine.StatusNotFound:
		case engine.StatusUpstream:
			ev = log.Error().Str("error", r.Message)
		default:
			ev = log.Warn().Str("error", r.Message)
		}
		ev.Str("status", string(r.Status)).
			Dur("duration", time.Since(start)).
			Msg("tool completed")
		return toolResult(r), nil
	}
}

// toolResult renders r as JSON text. Not-found results are informational;
// every other non-ok status is flagged as a tool error.
func toolResult(r engine.Result) *mcp.CallToolResult {
	b, err := json.Marshal(r)
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error())
	}
	res := mcp.NewToolResultText(string(b))
	if r.Status != engine.StatusOK && r.Status != engine.StatusNotFound {
		res.IsError = true
	}
	return res
}
