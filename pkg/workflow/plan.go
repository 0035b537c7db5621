// Package workflow executes DAG plans of task nodes with topological-wave
// scheduling: each wave runs every node whose dependencies have succeeded,
// bounded by a weighted semaphore. Plans arrive directly or from the LLM
// decomposer.
package workflow

import (
	"fmt"
	"strings"

	"github.com/benekli/minerva/pkg/router"
)

// TaskNode is one unit of work in a plan. InputTemplate may reference
// dependency results as {{node_id}} placeholders.
type TaskNode struct {
	ID            string          `json:"id"`
	Kind          router.TaskKind `json:"kind"`
	InputTemplate string          `json:"input"`
	DependsOn     []string        `json:"depends_on,omitempty"`
	RetryBudget   int             `json:"retry_budget,omitempty"`
	TimeoutMS     int64           `json:"timeout_ms,omitempty"`
}

// Plan is a validated DAG of task nodes.
type Plan struct {
	Nodes []TaskNode `json:"nodes"`
}

// Validate checks id uniqueness, dependency existence, kind membership,
// the size bound, and acyclicity.
func (p *Plan) Validate(maxNodes int) error {
	if len(p.Nodes) == 0 {
		return fmt.Errorf("plan has no nodes")
	}
	if maxNodes > 0 && len(p.Nodes) > maxNodes {
		return fmt.Errorf("plan has %d nodes, limit is %d", len(p.Nodes), maxNodes)
	}

	byID := make(map[string]*TaskNode, len(p.Nodes))
	for i := range p.Nodes {
		node := &p.Nodes[i]
		if strings.TrimSpace(node.ID) == "" {
			return fmt.Errorf("node %d has an empty id", i)
		}
		if _, dup := byID[node.ID]; dup {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}
		if !node.Kind.Valid() || node.Kind == router.TaskWorkflow {
			return fmt.Errorf("node %q has invalid kind %q", node.ID, node.Kind)
		}
		byID[node.ID] = node
	}

	for _, node := range p.Nodes {
		for _, dep := range node.DependsOn {
			if dep == node.ID {
				return fmt.Errorf("node %q depends on itself", node.ID)
			}
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("node %q depends on unknown node %q", node.ID, dep)
			}
		}
	}

	return p.checkAcyclic()
}

// checkAcyclic runs Kahn's algorithm; leftover nodes mean a cycle.
func (p *Plan) checkAcyclic() error {
	inDegree := make(map[string]int, len(p.Nodes))
	dependents := make(map[string][]string, len(p.Nodes))
	for _, node := range p.Nodes {
		inDegree[node.ID] += 0
		for _, dep := range node.DependsOn {
			inDegree[node.ID]++
			dependents[dep] = append(dependents[dep], node.ID)
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(p.Nodes) {
		return fmt.Errorf("plan contains a dependency cycle")
	}
	return nil
}

// node looks a node up by id. Callers run after Validate.
func (p *Plan) node(id string) *TaskNode {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}
