package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonicalClaim() map[string]any {
	return map[string]any{
		"claim_number":          "CLM-1001",
		"policy_number":         "POL-778",
		"claimant_name":         "Dana Reyes",
		"date_of_loss":          "2025-03-14",
		"loss_description":      "Rear-ended at a stop light",
		"estimated_repair_cost": 4200.50,
		"vehicle_details":       "2019 Toyota Camry",
	}
}

func TestParseClaim_Canonical(t *testing.T) {
	t.Parallel()

	c, err := ParseClaim(canonicalClaim())
	require.NoError(t, err)

	assert.Equal(t, "CLM-1001", c.ClaimNumber)
	assert.Equal(t, "POL-778", c.PolicyNumber)
	assert.Equal(t, "Dana Reyes", c.ClaimantName)
	assert.Equal(t, "2025-03-14", c.DateOfLoss)
	assert.InDelta(t, 4200.50, c.EstimatedRepairCost, 0.001)
	require.NotNil(t, c.VehicleDetails)
	assert.Equal(t, "2019 Toyota Camry", c.Vehicle())
}

func TestParseClaim_LegacyAliasesMatchCanonical(t *testing.T) {
	t.Parallel()

	legacy := map[string]any{
		"claim_number":      "CLM-1001",
		"policy_number":     "POL-778",
		"policyholder_name": "Dana Reyes",
		"date_of_incident":  "2025-03-14",
		"description":       "Rear-ended at a stop light",
		"damage_amount":     4200.50,
		"vehicle_details":   "2019 Toyota Camry",
	}

	fromLegacy, err := ParseClaim(legacy)
	require.NoError(t, err)
	fromCanonical, err := ParseClaim(canonicalClaim())
	require.NoError(t, err)

	assert.Equal(t, fromCanonical, fromLegacy)
}

func TestParseClaim_CanonicalWinsOverAlias(t *testing.T) {
	t.Parallel()

	raw := canonicalClaim()
	raw["damage_amount"] = 99999.0
	raw["description"] = "legacy text"

	c, err := ParseClaim(raw)
	require.NoError(t, err)
	assert.InDelta(t, 4200.50, c.EstimatedRepairCost, 0.001)
	assert.Equal(t, "Rear-ended at a stop light", c.LossDescription)
}

func TestParseClaim_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"claim_number":     "CLM-1",
		"policy_number":    "P",
		"claimant_name":    "A",
		"date_of_loss":     "2025-01-01",
		"loss_description": "x",
		"damage_amount":    10.0,
	}
	_, err := ParseClaim(raw)
	require.NoError(t, err)
	assert.Contains(t, raw, "damage_amount")
	assert.NotContains(t, raw, "estimated_repair_cost")
}

func TestParseClaim_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
		claim  string
	}{
		{"missing claim number", func(m map[string]any) { delete(m, "claim_number") }, FieldClaimNumber, ""},
		{"blank claim number", func(m map[string]any) { m["claim_number"] = "   " }, FieldClaimNumber, ""},
		{"missing policy", func(m map[string]any) { delete(m, "policy_number") }, FieldPolicyNumber, "CLM-1001"},
		{"missing cost", func(m map[string]any) { delete(m, "estimated_repair_cost") }, FieldEstimatedRepairCost, "CLM-1001"},
		{"negative cost", func(m map[string]any) { m["estimated_repair_cost"] = -1.0 }, FieldEstimatedRepairCost, "CLM-1001"},
		{"non-numeric cost", func(m map[string]any) { m["estimated_repair_cost"] = "lots" }, FieldEstimatedRepairCost, "CLM-1001"},
		{"wrong type name", func(m map[string]any) { m["claimant_name"] = []string{"a"} }, FieldClaimantName, "CLM-1001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := canonicalClaim()
			tt.mutate(raw)

			_, err := ParseClaim(raw)
			require.Error(t, err)

			var ce *Error
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, KindMalformedClaim, ce.Kind)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, tt.claim, ce.ClaimNumber)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParseClaim_NilPayload(t *testing.T) {
	t.Parallel()

	_, err := ParseClaim(nil)
	require.Error(t, err)
	assert.Equal(t, KindMalformedClaim, KindOf(err))
	assert.Equal(t, UnknownClaimNumber, ClaimNumberOf(err))
}

func TestParseClaim_NumericForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cost any
		want float64
	}{
		{"float", 1250.0, 1250},
		{"int", 1250, 1250},
		{"json number", json.Number("1250.75"), 1250.75},
		{"string with comma", "1,250.00", 1250},
		{"string with dollar", "$980", 980},
		{"zero", 0.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := canonicalClaim()
			raw["estimated_repair_cost"] = tt.cost
			c, err := ParseClaim(raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, c.EstimatedRepairCost, 0.0001)
		})
	}
}

func TestParseClaim_BlankVehicleIsNil(t *testing.T) {
	t.Parallel()

	raw := canonicalClaim()
	raw["vehicle_details"] = "  "
	c, err := ParseClaim(raw)
	require.NoError(t, err)
	assert.Nil(t, c.VehicleDetails)
	assert.Equal(t, "", c.Vehicle())
}

func TestClaimJSON_CanonicalKeys(t *testing.T) {
	t.Parallel()

	c, err := ParseClaim(canonicalClaim())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.JSON()), &decoded))
	assert.Equal(t, "CLM-1001", decoded["claim_number"])
	assert.Contains(t, decoded, "estimated_repair_cost")
}
