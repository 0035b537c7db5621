package config

import (
	"fmt"
	"time"
)

// WorkflowConfig configures the workflow engine used for multi-intent
// queries and explicit workflow runs.
type WorkflowConfig struct {
	// MaxConcurrentNodes caps how many nodes execute in parallel.
	MaxConcurrentNodes int `yaml:"max_concurrent_nodes,omitempty" json:"max_concurrent_nodes,omitempty" jsonschema:"title=Max Concurrent Nodes,description=Parallel node execution cap,minimum=1,default=10"`

	// MaxPlanNodes caps the size of plans produced by decomposition.
	MaxPlanNodes int `yaml:"max_plan_nodes,omitempty" json:"max_plan_nodes,omitempty" jsonschema:"title=Max Plan Nodes,description=Maximum nodes in a decomposed plan,minimum=1,default=10"`

	// DefaultNodeTimeout bounds a single node's execution when the node
	// does not declare its own.
	DefaultNodeTimeout Duration `yaml:"default_node_timeout,omitempty" json:"default_node_timeout,omitempty" jsonschema:"title=Default Node Timeout,description=Per-node timeout,default=60s"`

	// DefaultRetryBudget is the number of retries granted to a node when
	// the node does not declare its own.
	DefaultRetryBudget int `yaml:"default_retry_budget,omitempty" json:"default_retry_budget,omitempty" jsonschema:"title=Default Retry Budget,description=Retries per node,minimum=0,default=3"`
}

// SetDefaults applies default values.
func (c *WorkflowConfig) SetDefaults() {
	if c.MaxConcurrentNodes == 0 {
		c.MaxConcurrentNodes = 10
	}
	if c.MaxPlanNodes == 0 {
		c.MaxPlanNodes = 10
	}
	if c.DefaultNodeTimeout == 0 {
		c.DefaultNodeTimeout = Duration(60 * time.Second)
	}
	if c.DefaultRetryBudget == 0 {
		c.DefaultRetryBudget = 3
	}
}

// Validate checks the configuration for errors.
func (c *WorkflowConfig) Validate() error {
	if c.MaxConcurrentNodes < 1 {
		return fmt.Errorf("max_concurrent_nodes must be at least 1")
	}
	if c.MaxPlanNodes < 1 {
		return fmt.Errorf("max_plan_nodes must be at least 1")
	}
	if c.DefaultNodeTimeout < 0 {
		return fmt.Errorf("default_node_timeout must be non-negative")
	}
	if c.DefaultRetryBudget < 0 {
		return fmt.Errorf("default_retry_budget must be non-negative")
	}
	return nil
}
