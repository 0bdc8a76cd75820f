// Package planner decides, per stage, how many execute jobs to spawn
// and what each job's canonical and relationship context must be.
// Planners resolve anchors while they traverse the relationship graph;
// the path builder downstream is a pure function and never searches
// for an anchor itself.
package planner

import (
	"fmt"

	"dialectic/internal/types"
)

// Planner names one job-spawning strategy for a stage.
type Planner interface {
	Name() string

	// Plan derives the execute payloads for a stage from the prior
	// stage's documents. Inputs whose relationship context cannot be
	// resolved to a concrete anchor are a configuration error, never
	// silently skipped.
	Plan(plan types.PlanPayload, docs []types.SourceDocument) ([]types.ExecutePayload, error)
}

var registry = map[string]Planner{}

// Register adds a planner under its name. Called from package init;
// duplicate names are a programming error.
func Register(p Planner) {
	if _, exists := registry[p.Name()]; exists {
		panic(fmt.Sprintf("planner %q registered twice", p.Name()))
	}
	registry[p.Name()] = p
}

// Get returns the planner registered under name.
func Get(name string) (Planner, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown planner strategy %q", name)
	}
	return p, nil
}

// basePayload carries the stage coordinates from a plan payload into a
// spawned execute payload. TargetContributionID is deliberately never
// copied: a planner spawns fresh contributions only.
func basePayload(plan types.PlanPayload) types.ExecutePayload {
	return types.ExecutePayload{
		ProjectID:  plan.ProjectID,
		SessionID:  plan.SessionID,
		StageSlug:  plan.StageSlug,
		Iteration:  plan.Iteration,
		OutputType: plan.OutputType,
	}
}
