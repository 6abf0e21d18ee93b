package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// StagePath records which branch produced a stage's output.
type StagePath string

const (
	PathProvider StagePath = "provider"
	PathFallback StagePath = "fallback"
	PathInternal StagePath = "internal"
)

// StageResult traces a single pipeline stage.
type StageResult struct {
	Name     string    `json:"name"`
	Path     StagePath `json:"path"`
	Duration int64     `json:"duration_ms"`
}

// Bundle is the output of a completed pipeline run. Each entry is nil when the
// corresponding stage output is missing.
type Bundle struct {
	Decision    *ClaimDecision  `json:"decision"`
	FNOLSummary *IntakeSummary  `json:"fnol_summary"`
	Triage      *TriageDecision `json:"triage"`
	FraudSignal *FraudSignal    `json:"fraud_signal"`
	Stages      []StageResult   `json:"stages,omitempty"`
}

// Override is an adjuster's post-hoc replacement of a decision's coverage and payout.
type Override struct {
	Covered           bool    `json:"covered"`
	RecommendedPayout float64 `json:"recommended_payout"`
	Reason            string  `json:"reason"`
	Adjuster          string  `json:"adjuster,omitempty"`
}

// Validate checks the override fields.
func (o Override) Validate() error {
	if o.RecommendedPayout < 0 || math.IsNaN(o.RecommendedPayout) || math.IsInf(o.RecommendedPayout, 0) {
		return fmt.Errorf("recommended_payout must be a non-negative number, got %v", o.RecommendedPayout)
	}
	if !o.Covered && o.RecommendedPayout > 0 {
		return fmt.Errorf("a denied claim cannot carry a payout")
	}
	if strings.TrimSpace(o.Reason) == "" {
		return fmt.Errorf("reason is required")
	}
	return nil
}

// OverrideAudit records the original and replacement values of an override.
type OverrideAudit struct {
	ID              string    `json:"id"`
	ClaimNumber     string    `json:"claim_number"`
	OriginalCovered bool      `json:"original_covered"`
	OriginalPayout  float64   `json:"original_payout"`
	OverrideCovered bool      `json:"override_covered"`
	OverridePayout  float64   `json:"override_payout"`
	Reason          string    `json:"reason"`
	Adjuster        string    `json:"adjuster,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// DecisionRecord is a persisted pipeline outcome.
type DecisionRecord struct {
	ClaimNumber      string         `json:"claim_number"`
	Bundle           Bundle         `json:"bundle"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	Overridden       bool           `json:"overridden"`
	Override         *OverrideAudit `json:"override,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
