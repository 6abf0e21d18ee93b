package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/claims-cli/internal/model"
)

// Fallback rule thresholds, in dollars of estimated repair cost.
const (
	highSeverityCost    = 10000.0
	inspectionCost      = 5000.0
	fieldAdjusterCost   = 10000.0
	highEstimateCost    = 15000.0
	collisionLimit      = 15000.0
	standardDeductible  = 500.0
	baseFraudRisk       = 0.2
	fraudRiskIncrement  = 0.2
	fallbackSection     = "PART D - COLLISION COVERAGE"
	commercialUseSignal = "delivery"
)

var dollars = message.NewPrinter(language.English)

// toJSON renders a stage output for a downstream prompt.
func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func claimVars(rc *RunContext) map[string]string {
	return map[string]string{"claim_info": rc.Claim.JSON()}
}

var intakeStage = Stage[model.IntakeSummary]{
	Name:     StageIntake,
	Template: intakePrompt,
	Vars:     claimVars,
	Fallback: func(rc *RunContext) *model.IntakeSummary {
		c := rc.Claim
		severity := model.SeverityMedium
		if c.EstimatedRepairCost > highSeverityCost {
			severity = model.SeverityHigh
		}
		next := "Offer express settlement"
		if c.EstimatedRepairCost > inspectionCost {
			next = "Schedule adjuster inspection"
		}
		return &model.IntakeSummary{
			IncidentSummary: fmt.Sprintf("Collision reported for %s on %s.", c.ClaimantName, c.DateOfLoss),
			ImpactAssessment: dollars.Sprintf("Vehicle damage estimated at $%.2f with description: %s.",
				c.EstimatedRepairCost, c.LossDescription),
			SeverityLevel: severity,
			RecommendedActions: []string{
				"Verify policy coverage and endorsements",
				"Collect repair shop estimate",
				next,
			},
		}
	},
}

var triageStage = Stage[model.TriageDecision]{
	Name:     StageTriage,
	Template: triagePrompt,
	Vars: func(rc *RunContext) map[string]string {
		return map[string]string{
			"claim_info":   rc.Claim.JSON(),
			"fnol_summary": toJSON(rc.Intake),
		}
	},
	Fallback: func(rc *RunContext) *model.TriageDecision {
		if rc.Claim.EstimatedRepairCost >= fieldAdjusterCost {
			return &model.TriageDecision{
				Priority:       model.PriorityImmediate,
				Assignment:     "Field adjuster",
				Rationale:      "High severity impact; route to senior field adjuster for on-site estimate.",
				TargetSLAHours: 8,
			}
		}
		return &model.TriageDecision{
			Priority:       model.PriorityStandard,
			Assignment:     "Desk adjuster",
			Rationale:      "Standard collision claim with moderate damage; handle via desk team.",
			TargetSLAHours: 24,
		}
	},
}

var fraudStage = Stage[model.FraudSignal]{
	Name:     StageFraud,
	Template: fraudPrompt,
	Vars: func(rc *RunContext) map[string]string {
		return map[string]string{
			"claim_info": rc.Claim.JSON(),
			"triage":     toJSON(rc.Triage),
		}
	},
	Fallback: func(rc *RunContext) *model.FraudSignal {
		c := rc.Claim
		risk := baseFraudRisk
		flags := []string{}
		if strings.Contains(strings.ToLower(c.LossDescription), commercialUseSignal) {
			risk += fraudRiskIncrement
			flags = append(flags, "Commercial use disclosed")
		}
		if c.EstimatedRepairCost > highEstimateCost {
			risk += fraudRiskIncrement
			flags = append(flags, "High repair estimate vs. vehicle value")
		}
		signal := &model.FraudSignal{
			RiskScore: math.Max(0, math.Min(risk, 1)),
			Flags:     flags,
		}
		if signal.RequiresSIUReferral() {
			signal.Recommendation = "Escalate for SIU desk review"
		} else {
			signal.Recommendation = "No SIU referral"
		}
		return signal
	},
}

var queriesStage = Stage[model.PolicyQueries]{
	Name:     StageQueries,
	Template: queriesPrompt,
	Vars:     claimVars,
	Fallback: func(rc *RunContext) *model.PolicyQueries {
		c := rc.Claim
		return &model.PolicyQueries{Queries: []string{
			"Coverage conditions for " + c.PolicyNumber,
			"Deductible application for collision damage",
			"Settlement amount calculation for vehicle damage",
			"Exclusions for " + strings.ToLower(c.LossDescription),
			"Policy limits and coverage details",
		}}
	},
}

var recommendationStage = Stage[model.PolicyRecommendation]{
	Name:     StageRecommendation,
	Template: recommendationPrompt,
	Vars: func(rc *RunContext) map[string]string {
		return map[string]string{
			"claim_info":  rc.Claim.JSON(),
			"policy_text": rc.PolicyText,
		}
	},
	Fallback: func(rc *RunContext) *model.PolicyRecommendation {
		c := rc.Claim
		covered := c.EstimatedRepairCost < collisionLimit
		settlement := 0.0
		if covered {
			settlement = math.Max(0, c.EstimatedRepairCost-standardDeductible)
		}

		summary := fmt.Sprintf("Claim %s on policy %s for $%.2f", c.ClaimNumber, c.PolicyNumber, c.EstimatedRepairCost)
		if covered {
			summary += fmt.Sprintf(" is covered under Part D – Collision. Recommend paying $%.2f after the $%.2f deductible.",
				settlement, standardDeductible)
		} else {
			summary += " exceeds collision limits; recommend denying coverage."
		}

		return &model.PolicyRecommendation{
			PolicySection:         fallbackSection,
			RecommendationSummary: model.NormalizeSummary(summary),
			Deductible:            model.Float(standardDeductible),
			SettlementAmount:      model.Float(settlement),
		}
	},
}

// fallbackPolicyText is used when retrieval yields no documents at all.
func fallbackPolicyText(policyNumber string) string {
	return `
CALIFORNIA PERSONAL AUTO POLICY
Policy Number: ` + policyNumber + `

PART D - COVERAGE FOR DAMAGE TO YOUR AUTO
COLLISION COVERAGE
We will pay for direct and accidental loss to your covered auto caused by collision with another object or by upset of your covered auto.

DEDUCTIBLE
For each loss, our limit of liability will be reduced by the applicable deductible amount shown in the Declarations.
Standard collision deductible: $500
Comprehensive deductible: $250

LIMITS OF LIABILITY
Our limit of liability for loss will be the lesser of:
1. The actual cash value of the stolen or damaged property; or
2. The amount necessary to repair or replace the property.

EXCLUSIONS
We do not provide coverage for:
1. Loss to your covered auto which occurs while it is used to carry persons or property for compensation
2. Loss due to wear and tear, freezing, mechanical breakdown
3. Loss to equipment designed for the reproduction of sound`
}

// decide derives the terminal decision from the recommendation and whatever
// earlier stage outputs are present.
func decide(rc *RunContext) *model.ClaimDecision {
	rec := rc.Recommendation
	c := rc.Claim

	lower := strings.ToLower(rec.RecommendationSummary)
	textCovered := strings.Contains(lower, "covered") && !strings.Contains(lower, "not covered")
	amountCovered := rec.SettlementAmount != nil && *rec.SettlementAmount > 0

	d := &model.ClaimDecision{
		ClaimNumber: c.ClaimNumber,
		Covered:     textCovered || amountCovered,
	}
	if rec.Deductible != nil {
		d.Deductible = *rec.Deductible
	}
	if rec.SettlementAmount != nil {
		d.RecommendedPayout = *rec.SettlementAmount
	}
	d.Notes = decisionNotes(rc)
	return d
}

func decisionNotes(rc *RunContext) string {
	rec := rc.Recommendation
	var lines []string
	if rec.PolicySection != "" {
		lines = append(lines, fmt.Sprintf("Policy %s · %s", rc.Claim.PolicyNumber, rec.PolicySection))
	}
	if s := rc.Intake; s != nil {
		lines = append(lines, fmt.Sprintf("FNOL severity %s: %s", s.SeverityLevel, s.IncidentSummary))
	}
	if t := rc.Triage; t != nil {
		lines = append(lines, fmt.Sprintf("Triage ⇒ %s priority · %s (SLA %dh)", t.Priority, t.Assignment, t.TargetSLAHours))
	}
	if f := rc.Fraud; f != nil {
		lines = append(lines, fmt.Sprintf("Fraud risk %.0f%% (%s)", f.RiskScore*100, f.Recommendation))
	}
	lines = append(lines, "Settlement rationale: "+rec.RecommendationSummary)
	return strings.Join(lines, "\n")
}
