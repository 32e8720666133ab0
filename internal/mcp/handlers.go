package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/egress/internal/config"
	"github.com/nvandessel/egress/internal/ratelimit"
	"github.com/nvandessel/egress/internal/render"
	"github.com/nvandessel/egress/internal/session"
	"github.com/nvandessel/egress/internal/store"
)

// maxToolAgents caps egress_run populations; every agent is a goroutine
// under the concurrent strategy.
const maxToolAgents = 1 << 14

// maxToolCells caps egress_run grid area; a run holds the grid once per
// repetition.
const maxToolCells = 1 << 20

// defaultHistoryLimit is used when egress_history gets no limit.
const defaultHistoryLimit = 20

// registerTools registers all egress MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "egress_run",
		Description: "Run an evacuation simulation and record it in the run history",
	}, s.handleEgressRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "egress_history",
		Description: "List recorded evacuation runs, newest first",
	}, s.handleEgressHistory)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "egress_get_run",
		Description: "Show one recorded run including the order agents escaped",
	}, s.handleEgressGetRun)
}

// handleEgressRun implements the egress_run tool.
func (s *Server) handleEgressRun(ctx context.Context, req *sdk.CallToolRequest, args EgressRunInput) (_ *sdk.CallToolResult, _ EgressRunOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]any{
			"strategy": args.Strategy, "layout": args.Layout, "agents": args.Agents,
			"agents_pow": args.AgentsPow, "x_size": args.XSize, "y_size": args.YSize,
			"runs": args.Runs, "render": args.Render,
		}
		if args.Seed != nil {
			params["seed"] = *args.Seed
		}
		s.auditTool("egress_run", start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "egress_run"); err != nil {
		return nil, EgressRunOutput{}, err
	}

	cfg := *s.settings
	applyRunInput(&cfg, args)
	if err := cfg.Validate(); err != nil {
		return nil, EgressRunOutput{}, fmt.Errorf("invalid parameters: %w", err)
	}
	if n := cfg.Simulation.Population(); n > maxToolAgents {
		return nil, EgressRunOutput{}, fmt.Errorf("invalid parameters: %d agents exceeds the limit of %d", n, maxToolAgents)
	}
	if sim := cfg.Simulation; sim.XSize > maxToolCells/sim.YSize {
		return nil, EgressRunOutput{}, fmt.Errorf("invalid parameters: %dx%d grid exceeds the limit of %d cells", sim.XSize, sim.YSize, maxToolCells)
	}

	params, err := session.ParamsFromConfig(cfg.Simulation)
	if err != nil {
		return nil, EgressRunOutput{}, err
	}
	strategies, err := session.Strategies(cfg.Simulation.Strategy)
	if err != nil {
		return nil, EgressRunOutput{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	outcomes, err := session.Execute(ctx, params, strategies, session.Options{
		Logger: s.logger,
		Store:  s.store,
		Runs:   cfg.Measure.Runs,
	})
	if err != nil {
		return nil, EgressRunOutput{}, err
	}

	out := EgressRunOutput{Runs: make([]RunSummary, 0, len(outcomes))}
	var parts []string
	for _, o := range outcomes {
		out.Runs = append(out.Runs, RunSummary{
			ID:       o.RunID,
			Strategy: string(o.Strategy),
			Status:   string(store.StatusComplete),
			Grid:     fmt.Sprintf("%dx%d", params.XSize, params.YSize),
			Agents:   params.Agents,
			Seed:     params.Seed,
			Exited:   o.Result.Exited,
			Ticks:    o.Result.Ticks,
			Moves:    o.Result.Moves,
			Elapsed:  o.Perf.Wall,
			MaxRSSKB: o.Perf.MaxRSSKB,
		})
		parts = append(parts, fmt.Sprintf("%s: %d/%d exited in %v", o.Strategy, o.Result.Exited, params.Agents, o.Perf.Wall.Round(time.Microsecond)))
	}
	if args.Render && len(outcomes) > 0 {
		out.Grid = render.Text(outcomes[len(outcomes)-1].Final)
	}
	out.Message = strings.Join(parts, "; ")

	return nil, out, nil
}

// applyRunInput overlays the non-zero fields of args onto cfg.
func applyRunInput(cfg *config.EgressConfig, args EgressRunInput) {
	sim := &cfg.Simulation
	if args.Strategy != "" {
		sim.Strategy = args.Strategy
	}
	if args.AgentsPow != 0 {
		sim.AgentsPow = args.AgentsPow
		sim.Agents = 0
	}
	if args.Agents != 0 {
		sim.Agents = args.Agents
	}
	if args.XSize != 0 {
		sim.XSize = args.XSize
	}
	if args.YSize != 0 {
		sim.YSize = args.YSize
	}
	if args.Seed != nil {
		sim.Seed = *args.Seed
	}
	if args.Layout != "" {
		sim.Layout = args.Layout
	}
	if args.Runs != 0 {
		cfg.Measure.Runs = args.Runs
	}
}

// handleEgressHistory implements the egress_history tool.
func (s *Server) handleEgressHistory(ctx context.Context, req *sdk.CallToolRequest, args EgressHistoryInput) (_ *sdk.CallToolResult, _ EgressHistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("egress_history", start, retErr, sanitizeToolParams(map[string]any{
			"strategy": args.Strategy, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "egress_history"); err != nil {
		return nil, EgressHistoryOutput{}, err
	}

	if args.Limit < 0 {
		return nil, EgressHistoryOutput{}, fmt.Errorf("limit must be non-negative, got %d", args.Limit)
	}
	limit := args.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	runs, err := s.store.ListRuns(ctx, store.RunFilter{Strategy: args.Strategy, Limit: limit})
	if err != nil {
		return nil, EgressHistoryOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	out := EgressHistoryOutput{Runs: make([]RunSummary, 0, len(runs)), Count: len(runs)}
	for _, r := range runs {
		out.Runs = append(out.Runs, summarize(r))
	}
	return nil, out, nil
}

// handleEgressGetRun implements the egress_get_run tool.
func (s *Server) handleEgressGetRun(ctx context.Context, req *sdk.CallToolRequest, args EgressGetRunInput) (_ *sdk.CallToolResult, _ EgressGetRunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("egress_get_run", start, retErr, sanitizeToolParams(map[string]any{"id": args.ID}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "egress_get_run"); err != nil {
		return nil, EgressGetRunOutput{}, err
	}

	if args.ID == "" {
		return nil, EgressGetRunOutput{}, fmt.Errorf("'id' parameter is required")
	}

	run, err := s.store.GetRun(ctx, args.ID)
	if err != nil {
		return nil, EgressGetRunOutput{}, err
	}

	exitOrder := run.ExitOrder
	if exitOrder == nil {
		exitOrder = []int{}
	}
	return nil, EgressGetRunOutput{
		Run:       summarize(*run),
		Layout:    run.Layout,
		Target:    fmt.Sprintf("(%d,%d)", run.TargetX, run.TargetY),
		Stays:     run.Stays,
		Blocked:   run.Blocked,
		ExitOrder: exitOrder,
	}, nil
}

func summarize(r store.Run) RunSummary {
	return RunSummary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Strategy:  r.Strategy,
		Status:    string(r.Status),
		Grid:      fmt.Sprintf("%dx%d", r.XSize, r.YSize),
		Agents:    r.Agents,
		Seed:      r.Seed,
		Exited:    r.Exited,
		Ticks:     r.Ticks,
		Moves:     r.Moves,
		Elapsed:   r.Elapsed,
		MaxRSSKB:  r.MaxRSSKB,
	}
}
