// Package mcp exposes the tool catalog as a Model Context Protocol server
// and provides a client for driving such a server, typically a
// "bachmcp serve" subprocess.
package mcp

import (
	"context"
	_ "embed"
	"log/slog"
	"os"

	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/logging"
	"github.com/m4xw311/bachmcp/tools"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is reported to clients during initialization.
const ServerName = "max-bridge"

// SkillURI names the session guide resource.
const SkillURI = "bach://skill"

//go:embed skill.md
var builtinSkill string

// Server wraps an SDK server with one MCP tool per active tool.
type Server struct {
	server    *mcpsdk.Server
	log       *slog.Logger
	skillFile string
}

type ServerOption func(*Server)

// WithSkillFile serves path as the skill resource. A missing file falls back
// to the built-in guide.
func WithSkillFile(path string) ServerOption {
	return func(s *Server) { s.skillFile = path }
}

// NewServer registers active on a new server. Tool errors become error
// results the agent can read; they never fail the protocol exchange.
func NewServer(version string, active []tools.Tool, log *slog.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, nil),
		log:    log.With("component", "mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server.AddResource(&mcpsdk.Resource{
		URI:         SkillURI,
		Name:        "bach-skill",
		Title:       "Bach session guide",
		Description: "Session protocol, llll syntax, slots and layout. Read it at the start of every session.",
		MIMEType:    "text/markdown",
	}, s.readSkill)
	for _, t := range active {
		mcpsdk.AddTool(s.server, &mcpsdk.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: inputSchema(t.Params()),
		}, s.handler(t))
	}
	s.log.Info("registered tools", "count", len(active))
	return s
}

// Run serves over stdin/stdout until ctx is done or the client goes away.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, mcpsdk.NewStdioTransport())
}

// Connect serves a single session over t. Used with in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.server.Connect(ctx, t)
}

func (s *Server) readSkill(_ context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.ReadResourceParams) (*mcpsdk.ReadResourceResult, error) {
	text := builtinSkill
	if s.skillFile != "" {
		data, err := os.ReadFile(s.skillFile)
		switch {
		case err == nil:
			text = string(data)
		case os.IsNotExist(err):
			s.log.Debug("skill file not found, serving built-in guide", "path", s.skillFile)
		default:
			return nil, errors.Wrapf(err, "could not read skill file %s", s.skillFile)
		}
	}
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{{URI: params.URI, MIMEType: "text/markdown", Text: text}},
	}, nil
}

func (s *Server) handler(t tools.Tool) mcpsdk.ToolHandlerFor[map[string]any, any] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[map[string]any]) (*mcpsdk.CallToolResultFor[any], error) {
		s.log.Debug("tool call", "tool", t.Name(), "args", params.Arguments)
		out, err := t.Execute(ctx, params.Arguments)
		if err != nil {
			s.log.Warn("tool failed", "tool", t.Name(), "error", err)
			return &mcpsdk.CallToolResultFor[any]{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			}, nil
		}
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}},
		}, nil
	}
}

func inputSchema(params []tools.Param) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
	}
	for _, p := range params {
		schema.Properties[p.Name] = &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}
