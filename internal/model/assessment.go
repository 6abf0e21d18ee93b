package model

import (
	"fmt"
	"strings"
)

// SIUReferralThreshold is the fraud risk score at or above which a claim is
// escalated to the Special Investigations Unit.
const SIUReferralThreshold = 0.5

// MaxFraudFlags bounds the number of fraud flags a signal may carry.
const MaxFraudFlags = 5

// MaxPolicyQueries bounds the number of policy retrieval queries per claim.
const MaxPolicyQueries = 8

// Severity is the FNOL severity level.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Priority is the triage routing priority.
type Priority string

const (
	PriorityImmediate Priority = "Immediate"
	PriorityHigh      Priority = "High"
	PriorityStandard  Priority = "Standard"
	PriorityLow       Priority = "Low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityImmediate, PriorityHigh, PriorityStandard, PriorityLow:
		return true
	}
	return false
}

// IntakeSummary is the FNOL intake summary.
type IntakeSummary struct {
	IncidentSummary    string   `json:"incident_summary"`
	ImpactAssessment   string   `json:"impact_assessment"`
	SeverityLevel      Severity `json:"severity_level"`
	RecommendedActions []string `json:"recommended_actions"`
}

// RequiredKeys lists the keys a provider answer must carry.
func (s *IntakeSummary) RequiredKeys() []string {
	return []string{"incident_summary", "impact_assessment", "severity_level"}
}

// Validate checks the summary fields.
func (s *IntakeSummary) Validate() error {
	if strings.TrimSpace(s.IncidentSummary) == "" {
		return fmt.Errorf("incident_summary is required")
	}
	if !s.SeverityLevel.Valid() {
		return fmt.Errorf("invalid severity_level %q", s.SeverityLevel)
	}
	if s.RecommendedActions == nil {
		s.RecommendedActions = []string{}
	}
	return nil
}

// TriageDecision routes a claim to a handler.
type TriageDecision struct {
	Priority       Priority `json:"priority"`
	Assignment     string   `json:"assignment"`
	Rationale      string   `json:"rationale"`
	TargetSLAHours int      `json:"target_sla_hours"`
}

// RequiredKeys lists the keys a provider answer must carry.
func (t *TriageDecision) RequiredKeys() []string {
	return []string{"priority", "assignment", "rationale", "target_sla_hours"}
}

// Validate checks the triage fields.
func (t *TriageDecision) Validate() error {
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if strings.TrimSpace(t.Assignment) == "" {
		return fmt.Errorf("assignment is required")
	}
	if t.TargetSLAHours <= 0 {
		return fmt.Errorf("target_sla_hours must be positive, got %d", t.TargetSLAHours)
	}
	return nil
}

// FraudSignal is the SIU fraud screen result.
type FraudSignal struct {
	RiskScore      float64  `json:"risk_score"`
	Flags          []string `json:"flags"`
	Recommendation string   `json:"recommendation"`
}

// RequiredKeys lists the keys a provider answer must carry. Flags may be
// omitted.
func (f *FraudSignal) RequiredKeys() []string {
	return []string{"risk_score", "recommendation"}
}

// Validate checks the fraud signal fields.
func (f *FraudSignal) Validate() error {
	if f.RiskScore < 0 || f.RiskScore > 1 {
		return fmt.Errorf("risk_score must be within [0,1], got %v", f.RiskScore)
	}
	if len(f.Flags) > MaxFraudFlags {
		return fmt.Errorf("at most %d flags allowed, got %d", MaxFraudFlags, len(f.Flags))
	}
	if strings.TrimSpace(f.Recommendation) == "" {
		return fmt.Errorf("recommendation is required")
	}
	if f.Flags == nil {
		f.Flags = []string{}
	}
	return nil
}

// RequiresSIUReferral reports whether the risk score meets the referral threshold.
func (f *FraudSignal) RequiresSIUReferral() bool {
	return f.RiskScore >= SIUReferralThreshold
}

// PolicyQueries lists the retrieval queries for a claim's policy lookup.
type PolicyQueries struct {
	Queries []string `json:"queries"`
}

func (q *PolicyQueries) RequiredKeys() []string { return []string{"queries"} }

// Validate checks the query list.
func (q *PolicyQueries) Validate() error {
	if len(q.Queries) == 0 {
		return fmt.Errorf("at least one query is required")
	}
	if len(q.Queries) > MaxPolicyQueries {
		return fmt.Errorf("at most %d queries allowed, got %d", MaxPolicyQueries, len(q.Queries))
	}
	for i, s := range q.Queries {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("query %d is empty", i)
		}
	}
	return nil
}

// PolicyRecommendation is the coverage recommendation for a claim.
type PolicyRecommendation struct {
	PolicySection         string   `json:"policy_section"`
	RecommendationSummary string   `json:"recommendation_summary"`
	Deductible            *float64 `json:"deductible"`
	SettlementAmount      *float64 `json:"settlement_amount"`
}

// RequiredKeys lists the keys a provider answer must carry. Deductible and
// settlement are optional.
func (r *PolicyRecommendation) RequiredKeys() []string {
	return []string{"policy_section", "recommendation_summary"}
}

// Validate checks the recommendation fields.
func (r *PolicyRecommendation) Validate() error {
	if strings.TrimSpace(r.RecommendationSummary) == "" {
		return fmt.Errorf("recommendation_summary is required")
	}
	if r.Deductible != nil && *r.Deductible < 0 {
		return fmt.Errorf("deductible must be non-negative, got %v", *r.Deductible)
	}
	if r.SettlementAmount != nil && *r.SettlementAmount < 0 {
		return fmt.Errorf("settlement_amount must be non-negative, got %v", *r.SettlementAmount)
	}
	return nil
}

// ClaimDecision is the terminal coverage and payout decision.
type ClaimDecision struct {
	ClaimNumber       string  `json:"claim_number"`
	Covered           bool    `json:"covered"`
	Deductible        float64 `json:"deductible"`
	RecommendedPayout float64 `json:"recommended_payout"`
	Notes             string  `json:"notes"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
