package pipeline

// Stage names. They appear in logs, stage traces and provider requests.
const (
	StageIntake         = "intake"
	StageTriage         = "triage"
	StageFraud          = "fraud"
	StageQueries        = "queries"
	StageRetrieval      = "retrieval"
	StageRecommendation = "recommendation"
	StageDecision       = "decision"
)

const intakePrompt = `You are assisting a claims intake specialist.
Summarize this first notice of loss as a JSON object with these keys:
- "incident_summary": one or two sentences describing what happened
- "impact_assessment": vehicle and human impact
- "severity_level": one of "Low", "Medium", "High"
- "recommended_actions": ordered list of next steps for the carrier

Claim:
{claim_info}

Respond with the JSON object only.`

const triagePrompt = `You are routing an auto claim to the right handler.
Return a JSON object with these keys:
- "priority": one of "Immediate", "High", "Standard", "Low"
- "assignment": handler role, for example "Field adjuster", "Desk adjuster" or "Express lane"
- "rationale": one or two sentences
- "target_sla_hours": positive integer

Claim:
{claim_info}

Intake summary:
{fnol_summary}

Respond with the JSON object only.`

const fraudPrompt = `You are screening a claim for the Special Investigations Unit.
Consider the loss description, vehicle usage and the repair estimate relative to the vehicle.
Return a JSON object with these keys:
- "risk_score": number between 0 and 1
- "flags": up to 3 short strings
- "recommendation": referral recommendation

Claim:
{claim_info}

Triage:
{triage}

Respond with the JSON object only.`

const queriesPrompt = `You decide which sections of an auto insurance policy to consult for a claim.
Look at the type of loss, the repair estimate and the policy number, and cover:
coverage conditions for the damage, deductible application, endorsements related
to the incident, and exclusions that might apply.

Write 3 to 5 search queries for a policy clause index and return them as
{"queries": ["...", "..."]}

Claim:
{claim_info}

Respond with the JSON object only.`

const recommendationPrompt = `Using the retrieved policy text, decide whether the claim is covered.
Return a JSON object with these keys:
- "policy_section": the section that applies
- "recommendation_summary": coverage recommendation including exclusions or special conditions
- "deductible": applicable deductible amount
- "settlement_amount": repair cost minus deductible when covered, otherwise 0

Claim:
{claim_info}

Policy text:
{policy_text}

Respond with the JSON object only.`
