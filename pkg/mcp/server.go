// Package mcp implements a Model Context Protocol server exposing the
// repominer pipeline as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/repominer/pkg/config"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
	"github.com/Sumatoshi-tech/repominer/pkg/version"
)

const serverName = "repominer"

// mcpSpanPrefix prefixes tool span names and metric operations.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey labels the trace id appended to sampled tool results.
const traceIDMetaKey = "trace_id"

// Tool descriptions shown to MCP clients.
const (
	fixingCommitsToolDescription = "Find the defect-fixing commits of a Git branch and " +
		"label each with its defect categories (CONDITIONAL, CONFIGURATION_DATA, DEPENDENCY, " +
		"DOCUMENTATION, IDEMPOTENCY, SECURITY, SERVICE, SYNTAX). Accepts a repository path and optional branch."

	labelToolDescription = "Run the full defect-mining pipeline on a Git branch: fixing commits, " +
		"fixed files with the commit that introduced each defect, and every failure-prone " +
		"file version inside a defect window. Accepts a repository path, optional branch and file filters."
)

// ServerDeps holds injectable dependencies for the MCP server. Nil fields
// fall back to production defaults or disable the feature.
type ServerDeps struct {
	Logger *slog.Logger
	// Metrics records rate, errors and duration per tool call.
	Metrics *observability.REDMetrics
	// Mining records pipeline counters of every run.
	Mining *observability.MiningMetrics
	// Tracer opens one span per tool call.
	Tracer trace.Tracer
	// Config supplies rules, workers, relevance and the commit cache size.
	Config *config.Config
	// Open opens a repository history. Nil opens local git repositories.
	Open OpenFunc
}

// Server is the MCP server with the repominer tools registered.
type Server struct {
	inner   *mcpsdk.Server
	metrics *observability.REDMetrics
	tracer  trace.Tracer

	mu    sync.RWMutex
	tools []string
}

// NewServer creates a server exposing repominer_fixing_commits and
// repominer_label.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	srv := &Server{
		inner:   mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version.Version}, opts),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	miner := newMinerTools(deps)

	register(srv, ToolNameFixingCommits, fixingCommitsToolDescription, miner.handleFixingCommits)
	register(srv, ToolNameLabel, labelToolDescription, miner.handleLabel)

	return srv
}

// register adds a tool wrapped with metrics outside tracing, so the
// recorded duration includes span bookkeeping.
func register[In any](s *Server, name, description string, h mcpsdk.ToolHandlerFor[In, ToolOutput]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description},
		withMetrics(s.metrics, name, withTracing(s.tracer, name, h)))

	s.mu.Lock()
	s.tools = append(s.tools, name)
	s.mu.Unlock()
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves on stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// withTracing runs h in a server span and appends the trace id to sampled
// results so a client can look the run up.
func withTracing[In any](
	tracer trace.Tracer, name string, h mcpsdk.ToolHandlerFor[In, ToolOutput],
) mcpsdk.ToolHandlerFor[In, ToolOutput] {
	if tracer == nil {
		return h
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", name)),
		)
		defer span.End()

		result, output, err := h(ctx, req, in)

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content,
				&mcpsdk.TextContent{Text: traceIDMetaKey + "=" + sc.TraceID().String()})
		}

		return result, output, err
	}
}

// withMetrics records one RED observation per call. Tool-level failures
// reported through IsError count as errors.
func withMetrics[In any](
	metrics *observability.REDMetrics, name string, h mcpsdk.ToolHandlerFor[In, ToolOutput],
) mcpsdk.ToolHandlerFor[In, ToolOutput] {
	if metrics == nil {
		return h
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		end := metrics.Begin(ctx, mcpSpanPrefix+name)

		result, output, err := h(ctx, req, in)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		end(status)

		return result, output, err
	}
}
