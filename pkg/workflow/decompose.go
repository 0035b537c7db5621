package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/utils"
)

const decomposePrompt = `Break the user request into a plan of task nodes. Respond with a JSON array only. Each node:
{"id": "<short_snake_case>", "kind": "<research|code|chat|rag|weather|finance|routing>", "input": "<the sub-question>", "depends_on": ["<ids>"]}

Rules: at most %d nodes; ids unique; depends_on may only name earlier nodes; a node may reference a dependency's result in its input as {{dep_id}}; independent sub-questions must not depend on each other.

Request: %s`

const refinePrompt = `Your previous plan was rejected:

%s

Previous plan:
%s

Produce a corrected JSON array of task nodes following the same rules (at most %d nodes).

Request: %s`

const aggregatePrompt = `Combine the task results below into one coherent answer to the user's request. Where a task failed or was skipped, note the gap briefly instead of inventing content.

Request: %s

%s`

// maxRefineAttempts bounds decomposer re-prompts after validation
// rejections.
const maxRefineAttempts = 2

// Decomposer turns a multi-intent query into a validated plan via
// propose, validate, refine.
type Decomposer struct {
	cfg     *config.WorkflowConfig
	manager *llms.Manager
	logger  *slog.Logger
}

// NewDecomposer creates the decomposer.
func NewDecomposer(cfg *config.WorkflowConfig, manager *llms.Manager, logger *slog.Logger) (*Decomposer, error) {
	if manager == nil {
		return nil, fmt.Errorf("completion manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{cfg: cfg, manager: manager, logger: logger}, nil
}

// Decompose proposes a plan and refines it on validation failures.
func (d *Decomposer) Decompose(ctx context.Context, query string) (*Plan, error) {
	response, err := d.complete(ctx, fmt.Sprintf(decomposePrompt, d.cfg.MaxPlanNodes, query))
	if err != nil {
		return nil, fmt.Errorf("plan proposal failed: %w", err)
	}

	plan, validationErr := parsePlan(response, d.cfg.MaxPlanNodes)
	for attempt := 0; validationErr != nil && attempt < maxRefineAttempts; attempt++ {
		d.logger.Debug("refining rejected plan", "attempt", attempt+1, "reason", validationErr)

		response, err = d.complete(ctx, fmt.Sprintf(refinePrompt,
			validationErr.Error(), response, d.cfg.MaxPlanNodes, query))
		if err != nil {
			return nil, fmt.Errorf("plan refinement failed: %w", err)
		}
		plan, validationErr = parsePlan(response, d.cfg.MaxPlanNodes)
	}

	if validationErr != nil {
		return nil, fmt.Errorf("no valid plan after %d refinements: %w", maxRefineAttempts, validationErr)
	}
	return plan, nil
}

func (d *Decomposer) complete(ctx context.Context, prompt string) (string, error) {
	return d.manager.Complete(ctx, []llms.Message{llms.User(prompt)}, &llms.Options{
		Temperature:    config.Float64Ptr(0.2),
		ResponseFormat: "json",
	})
}

func parsePlan(response string, maxNodes int) (*Plan, error) {
	var nodes []TaskNode
	if err := utils.UnmarshalLenient(response, &nodes); err != nil {
		return nil, fmt.Errorf("unparseable plan: %w", err)
	}

	plan := &Plan{Nodes: nodes}
	if err := plan.Validate(maxNodes); err != nil {
		return nil, err
	}
	return plan, nil
}

// Aggregator folds a finished run back into one answer.
type Aggregator struct {
	manager *llms.Manager
}

// NewAggregator creates the aggregator.
func NewAggregator(manager *llms.Manager) (*Aggregator, error) {
	if manager == nil {
		return nil, fmt.Errorf("completion manager is required")
	}
	return &Aggregator{manager: manager}, nil
}

// Aggregate synthesizes surviving node results; failed and skipped nodes
// appear as annotated gaps.
func (a *Aggregator) Aggregate(ctx context.Context, query string, result *RunResult) (string, error) {
	ids := make([]string, 0, len(result.Records))
	for id := range result.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var results strings.Builder
	for _, id := range ids {
		record := result.Records[id]
		switch record.Status {
		case StatusSucceeded:
			fmt.Fprintf(&results, "## %s\n%s\n\n", id, record.Result)
		case StatusFailed:
			fmt.Fprintf(&results, "## %s\n(failed: %s)\n\n", id, record.Err)
		case StatusSkipped:
			fmt.Fprintf(&results, "## %s\n(skipped: %s)\n\n", id, record.Err)
		}
	}

	answer, err := a.manager.Complete(ctx, []llms.Message{
		llms.User(fmt.Sprintf(aggregatePrompt, query, results.String())),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("aggregation failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
