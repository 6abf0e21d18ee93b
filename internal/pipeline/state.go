package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

// State is a position in the linear claim run lifecycle.
type State int

const (
	StateParsed State = iota
	StateIntakeSummarized
	StateTriaged
	StateFraudScored
	StateQueriesGenerated
	StatePolicyRetrieved
	StateRecommendationGenerated
	StateDecided
	StateCompleted
)

var stateNames = [...]string{
	"parsed",
	"intake_summarized",
	"triaged",
	"fraud_scored",
	"queries_generated",
	"policy_retrieved",
	"recommendation_generated",
	"decided",
	"completed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[s]
}

// RunContext is the working state of a single claim run. It is owned by one
// goroutine and never shared between runs.
type RunContext struct {
	Claim          model.Claim
	Intake         *model.IntakeSummary
	Triage         *model.TriageDecision
	Fraud          *model.FraudSignal
	Queries        *model.PolicyQueries
	PolicyText     string
	Recommendation *model.PolicyRecommendation
	Decision       *model.ClaimDecision

	state  State
	stages []model.StageResult
}

// NewRunContext starts a run for an already-parsed claim.
func NewRunContext(claim model.Claim) *RunContext {
	return &RunContext{Claim: claim, state: StateParsed}
}

// State returns the current lifecycle state.
func (rc *RunContext) State() State {
	return rc.state
}

// Stages returns the stage trace recorded so far.
func (rc *RunContext) Stages() []model.StageResult {
	return rc.stages
}

// advance moves to next, which must be the immediate successor.
func (rc *RunContext) advance(next State) error {
	if next != rc.state+1 || next > StateCompleted {
		return eris.Errorf("pipeline: illegal transition %s -> %s", rc.state, next)
	}
	rc.state = next
	return nil
}

func (rc *RunContext) record(r model.StageResult) {
	rc.stages = append(rc.stages, r)
}

// Bundle assembles the output of a completed run.
func (rc *RunContext) Bundle() (*model.Bundle, error) {
	if rc.state != StateCompleted {
		return nil, eris.Errorf("pipeline: run is %s, not completed", rc.state)
	}
	stages := make([]model.StageResult, len(rc.stages))
	copy(stages, rc.stages)
	return &model.Bundle{
		Decision:    rc.Decision,
		FNOLSummary: rc.Intake,
		Triage:      rc.Triage,
		FraudSignal: rc.Fraud,
		Stages:      stages,
	}, nil
}
