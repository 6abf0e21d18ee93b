package retrieval

import (
	"context"
	"strings"
)

// topic is a canned policy passage selected by query keywords.
type topic struct {
	name     string
	keywords []string
	text     string
}

// topics are checked in order; the first whose keyword appears in the
// lowercased query wins.
var topics = []topic{
	{
		name:     "commercial-use",
		keywords: []string{"commercial", "delivery", "rideshare"},
		text: `Standard personal auto policies exclude commercial use including:
- Food delivery (pizza, groceries, restaurant meals)
- Ridesharing services (Uber, Lyft)
- Package/courier delivery
- For-hire transportation

Any accident during commercial use results in claim denial.
Commercial auto policy required for business use.`,
	},
	{
		name:     "total-loss",
		keywords: []string{"total loss", "totaled"},
		text: `Total Loss Threshold: Repair cost ≥ 75% of vehicle's actual cash value (ACV)

Settlement Process:
1. Determine ACV using comparable vehicles (same year/make/model/mileage)
2. Deduct applicable deductible
3. Deduct salvage value if insured retains vehicle
4. Pay net settlement amount
5. Require title transfer

New Car Replacement available on premium policies if total loss within 2 years of purchase.`,
	},
	{
		name:     "fraud",
		keywords: []string{"fraud", "suspicious"},
		text: `Fraud Red Flags requiring SIU referral:
- Late reporting (>72 hours)
- Inconsistent statements vs police report
- No independent witnesses
- Pre-existing damage
- Recent coverage increase (<30 days before loss)
- Soft tissue injuries with no vehicle damage
- Multiple claims in short timeframe
- Attorney involvement within 48 hours`,
	},
	{
		name:     "comprehensive",
		keywords: []string{"vandalism", "comprehensive", "theft"},
		text: `Comprehensive coverage applies to:
- Vandalism (graffiti, keying, broken windows, slashed tires)
- Theft of vehicle, parts, or contents
- Fire damage (non-collision)
- Weather damage (hail, flood)

Requirements:
- Police report must be filed within 24 hours of discovery
- Failure to file police report may result in denial
- Comprehensive deductible applies`,
	},
	{
		name:     "bodily-injury",
		keywords: []string{"bodily injury", "injury", "medical"},
		text: `Bodily Injury Coverage:
- Pays for injuries to others when policyholder is at fault
- Medical Payments coverage pays for policyholder/passenger injuries regardless of fault
- Uninsured Motorist coverage protects against uninsured at-fault drivers

Litigation Risk Factors:
- Attorney representation within 48 hours
- Demand letters before medical treatment concludes
- Pre-litigation demands exceed policy limits
- History of personal injury lawsuits

High medical treatment costs and attorney involvement increase litigation risk.`,
	},
	{
		name:     "subrogation",
		keywords: []string{"subrogation", "not at fault"},
		text: `Subrogation pursued when:
- Policyholder 0% at fault
- Other party identified with valid insurance
- Claim payout exceeds $2,500
- Police report assigns fault to other party
- Potential recovery exceeds pursuit cost (minimum $5,000)

Process:
1. Pay policyholder's collision claim (waive deductible)
2. Send demand to at-fault party's insurer
3. Negotiate settlement or arbitrate
4. Reimburse policyholder's deductible if full recovery
5. Recover claim payout amount`,
	},
}

var generalTopic = topic{
	name: "general",
	text: `Standard Auto Policy Coverage:
- Bodily Injury Liability: Covers injuries to others
- Property Damage Liability: Covers damage to others' property
- Collision: Covers damage to insured vehicle (deductible applies)
- Comprehensive: Covers non-collision damage (theft, vandalism, weather)
- Uninsured/Underinsured Motorist: Protects against uninsured drivers
- Medical Payments: Covers medical expenses regardless of fault

Exclusions:
- Commercial use (delivery, rideshare, for-hire)
- Intentional acts
- Racing or speed contests
- Vehicle used without permission`,
}

// Keyword is the deterministic fallback corpus. It ignores topK and always
// returns exactly one passage.
type Keyword struct{}

// Retrieve returns the passage for the first topic matching query.
func (Keyword) Retrieve(_ context.Context, query string, _ int) Result {
	return Result{Documents: []Document{MatchTopic(query)}}
}

// MatchTopic selects the keyword passage for query.
func MatchTopic(query string) Document {
	q := strings.ToLower(query)
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(q, kw) {
				return t.document()
			}
		}
	}
	return generalTopic.document()
}

func (t topic) document() Document {
	return Document{ID: "fallback:" + t.name, Text: t.text}
}
