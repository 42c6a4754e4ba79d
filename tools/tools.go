package tools

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/logging"
	"github.com/m4xw311/bachmcp/memory"
)

// Tool defines the interface for any action the agent can take.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ParamType is the JSON type an argument is expected to have.
type ParamType string

const (
	String  ParamType = "string"
	Number  ParamType = "number"
	Integer ParamType = "integer"
	Boolean ParamType = "boolean"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ToolRegistry holds all available tools.
type ToolRegistry struct {
	tools map[string]Tool
	log   *slog.Logger
}

type RegistryOption func(*registryOptions)

type registryOptions struct {
	log    *slog.Logger
	memory *memory.Store
}

func WithLogger(l *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMemoryStore overrides the store built from cfg.MemoryFile.
func WithMemoryStore(s *memory.Store) RegistryOption {
	return func(o *registryOptions) { o.memory = s }
}

// NewToolRegistry registers the full catalog against b.
func NewToolRegistry(cfg *config.Config, b Bridge, opts ...RegistryOption) *ToolRegistry {
	o := registryOptions{log: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.memory == nil {
		o.memory = memory.NewStore(cfg.MemoryFile)
	}

	r := &ToolRegistry{tools: make(map[string]Tool), log: o.log}
	e := newEngine(b, cfg, o.log)

	for _, t := range scoreTools(e) {
		r.Register(t)
	}
	r.Register(&ProcessMessageTool{engine: e, allowedCommands: cfg.AllowedCommands, log: o.log})
	for _, t := range queryTools(e) {
		r.Register(t)
	}
	for _, t := range layoutTools(e) {
		r.Register(t)
	}
	r.Register(&ExportMidiTool{engine: e, fsAccess: &cfg.FilesystemAccess})
	r.Register(&ExportImageTool{engine: e, fsAccess: &cfg.FilesystemAccess})
	r.Register(&ScoreSnapshotTool{
		engine:  e,
		dir:     cfg.SnapshotDir,
		timeout: cfg.SnapshotTimeout,
		poll:    cfg.PollInterval,
		now:     time.Now,
	})
	r.Register(&NewDefaultScoreTool{engine: e})
	for _, t := range inboundTools(b, cfg) {
		r.Register(t)
	}
	r.Register(&MemoryReadTool{store: o.memory})
	r.Register(&MemoryWriteTool{store: o.memory})
	return r
}

func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, sorted.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetActiveTools returns the tools selected by a toolset. Entries are
// doublestar patterns ("*", "get*", "{play,stop}"); a literal entry that
// matches nothing is an error so typos surface at startup.
func (r *ToolRegistry) GetActiveTools(ts *config.Toolset) ([]Tool, error) {
	seen := make(map[string]bool)
	var active []Tool
	for _, pattern := range ts.Tools {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "invalid tool pattern '%s' in toolset '%s'", pattern, ts.Name)
		}
		matched := false
		for _, name := range r.Names() {
			ok, err := doublestar.Match(pattern, name)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid tool pattern '%s'", pattern)
			}
			if !ok {
				continue
			}
			matched = true
			if !seen[name] {
				seen[name] = true
				active = append(active, r.tools[name])
			}
		}
		if !matched && !hasMeta(pattern) {
			return nil, errors.Wrapf(errors.ErrToolNotFound, "tool '%s' from toolset '%s' is not registered", pattern, ts.Name)
		}
	}
	return active, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, errors.Wrapf(err, "invalid glob pattern '%s'", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// isCommandAllowed checks a command against the regex allowlist. An empty
// allowlist permits everything.
func isCommandAllowed(command string, allowed []string, log *slog.Logger) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Warn("invalid regex in allowed_commands, comparing literally", "pattern", pattern, "error", err)
			if command == pattern {
				return true
			}
			continue
		}
		if re.MatchString(command) {
			return true
		}
	}
	return false
}
