package mcp

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/logging"
	"github.com/m4xw311/bachmcp/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client manages the connection to a single MCP server.
type Client struct {
	Name    string
	cmd     *exec.Cmd
	session *mcpsdk.ClientSession
	tools   map[string]*RemoteTool
	log     *slog.Logger
}

// NewCommandClient starts command as a subprocess speaking MCP on its
// stdio and connects to it. The child's stderr is passed through.
func NewCommandClient(ctx context.Context, name, command string, args []string, log *slog.Logger) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	c, err := NewClient(ctx, name, mcpsdk.NewCommandTransport(cmd), log)
	if err != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil, err
	}
	c.cmd = cmd
	return c, nil
}

// NewClient connects over transport and discovers the server's tools.
func NewClient(ctx context.Context, name string, transport mcpsdk.Transport, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = logging.Discard()
	}
	sdk := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "bachmcp-client", Version: "v1.0.0"}, nil)
	session, err := sdk.Connect(ctx, transport)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}
	c := &Client{
		Name:    name,
		session: session,
		tools:   make(map[string]*RemoteTool),
		log:     log.With("component", "mcp-client", "server", name),
	}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := session.ListTools(ctx, params)
		if err != nil {
			_ = session.Close()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range list.Tools {
			c.tools[t.Name] = &RemoteTool{tool: t, client: c}
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}

	c.log.Info("initialized MCP client", "tools", len(c.tools))
	return c, nil
}

// Resources lists the URIs of the server's resources.
func (c *Client) Resources(ctx context.Context) ([]string, error) {
	var uris []string
	params := &mcpsdk.ListResourcesParams{}
	for {
		list, err := c.session.ListResources(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list resources from MCP server '%s'", c.Name)
		}
		for _, r := range list.Resources {
			uris = append(uris, r.URI)
		}
		if list.NextCursor == "" {
			return uris, nil
		}
		params.Cursor = list.NextCursor
	}
}

// ReadResource returns the text of the resource at uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (string, error) {
	res, err := c.session.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: uri})
	if err != nil {
		return "", errors.Wrapf(err, "failed to read resource '%s'", uri)
	}
	var parts []string
	for _, rc := range res.Contents {
		if rc.Text != "" {
			parts = append(parts, rc.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// GetTool returns a tool provided by the server by name.
func (c *Client) GetTool(name string) (*RemoteTool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// ToolNames lists the server's tools, sorted.
func (c *Client) ToolNames() []string {
	names := make([]string, 0, len(c.tools))
	for n := range c.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close ends the session and, for a subprocess server, waits for it to exit.
func (c *Client) Close() error {
	var err error
	if c.session != nil {
		err = c.session.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		c.log.Info("terminating MCP server")
		_ = c.cmd.Process.Kill()
	}
	return err
}

// RemoteTool is a tool served by an MCP server. It satisfies tools.Tool.
type RemoteTool struct {
	tool   *mcpsdk.Tool
	client *Client
}

func (t *RemoteTool) Name() string        { return t.tool.Name }
func (t *RemoteTool) Description() string { return t.tool.Description }

// Params reads the argument list back out of the tool's input schema.
func (t *RemoteTool) Params() []tools.Param {
	s := t.tool.InputSchema
	if s == nil {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	params := make([]tools.Param, 0, len(s.Properties))
	for name, p := range s.Properties {
		params = append(params, tools.Param{
			Name:        name,
			Type:        tools.ParamType(p.Type),
			Description: p.Description,
			Required:    required[name],
		})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}

// Execute calls the tool. An error result from the server is returned as a
// Go error carrying the server's text.
func (t *RemoteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	result, err := t.client.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.tool.Name,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s'", t.Name())
	}
	var b strings.Builder
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	if result.IsError {
		return "", errors.New("tool '%s' failed: %s", t.Name(), b.String())
	}
	return b.String(), nil
}
