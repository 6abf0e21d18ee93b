package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical claim field names.
const (
	FieldClaimNumber         = "claim_number"
	FieldPolicyNumber        = "policy_number"
	FieldClaimantName        = "claimant_name"
	FieldDateOfLoss          = "date_of_loss"
	FieldLossDescription     = "loss_description"
	FieldEstimatedRepairCost = "estimated_repair_cost"
	FieldVehicleDetails      = "vehicle_details"
)

// legacyAliases maps legacy intake field names to their canonical names.
var legacyAliases = map[string]string{
	"damage_amount":     FieldEstimatedRepairCost,
	"policyholder_name": FieldClaimantName,
	"date_of_incident":  FieldDateOfLoss,
	"description":       FieldLossDescription,
}

// Claim is a validated first notice of loss record. It is a value type and is
// never mutated after ParseClaim returns it.
type Claim struct {
	ClaimNumber         string  `json:"claim_number" yaml:"claim_number"`
	PolicyNumber        string  `json:"policy_number" yaml:"policy_number"`
	ClaimantName        string  `json:"claimant_name" yaml:"claimant_name"`
	DateOfLoss          string  `json:"date_of_loss" yaml:"date_of_loss"`
	LossDescription     string  `json:"loss_description" yaml:"loss_description"`
	EstimatedRepairCost float64 `json:"estimated_repair_cost" yaml:"estimated_repair_cost"`
	VehicleDetails      *string `json:"vehicle_details,omitempty" yaml:"vehicle_details,omitempty"`
}

// Vehicle returns the vehicle details or an empty string.
func (c Claim) Vehicle() string {
	if c.VehicleDetails == nil {
		return ""
	}
	return *c.VehicleDetails
}

// JSON returns the canonical JSON encoding used in provider prompts.
func (c Claim) JSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// NormalizeAliases returns a copy of raw with legacy field names translated to
// canonical ones. When both a legacy and a canonical name are present the
// canonical value wins.
func NormalizeAliases(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[strings.TrimSpace(k)] = v
	}
	for legacy, canonical := range legacyAliases {
		v, ok := out[legacy]
		if !ok {
			continue
		}
		delete(out, legacy)
		if _, exists := out[canonical]; !exists {
			out[canonical] = v
		}
	}
	return out
}

// ParseClaim validates raw claim data and returns a Claim. Errors are
// *Error values of kind KindMalformedClaim naming the offending field.
func ParseClaim(raw map[string]any) (Claim, error) {
	if raw == nil {
		return Claim{}, MalformedField("", "", "claim payload is empty")
	}
	data := NormalizeAliases(raw)

	var c Claim
	var err error

	// claim_number first so later errors can carry it.
	if c.ClaimNumber, err = requiredString(data, FieldClaimNumber); err != nil {
		return Claim{}, MalformedField("", FieldClaimNumber, err.Error())
	}
	fail := func(field string, e error) (Claim, error) {
		return Claim{}, MalformedField(c.ClaimNumber, field, e.Error())
	}

	if c.PolicyNumber, err = requiredString(data, FieldPolicyNumber); err != nil {
		return fail(FieldPolicyNumber, err)
	}
	if c.ClaimantName, err = requiredString(data, FieldClaimantName); err != nil {
		return fail(FieldClaimantName, err)
	}
	if c.DateOfLoss, err = requiredString(data, FieldDateOfLoss); err != nil {
		return fail(FieldDateOfLoss, err)
	}
	if c.LossDescription, err = requiredString(data, FieldLossDescription); err != nil {
		return fail(FieldLossDescription, err)
	}

	cost, ok := data[FieldEstimatedRepairCost]
	if !ok || cost == nil {
		return fail(FieldEstimatedRepairCost, fmt.Errorf("is required"))
	}
	if c.EstimatedRepairCost, err = toFloat(cost); err != nil {
		return fail(FieldEstimatedRepairCost, err)
	}
	if c.EstimatedRepairCost < 0 {
		return fail(FieldEstimatedRepairCost, fmt.Errorf("must be non-negative, got %v", c.EstimatedRepairCost))
	}

	if v, ok := data[FieldVehicleDetails]; ok && v != nil {
		s, sErr := toString(v)
		if sErr != nil {
			return fail(FieldVehicleDetails, sErr)
		}
		if s = strings.TrimSpace(s); s != "" {
			c.VehicleDetails = &s
		}
	}

	return c, nil
}

func requiredString(data map[string]any, field string) (string, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return "", fmt.Errorf("is required")
	}
	s, err := toString(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	return s, nil
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t.String())
		}
		f = parsed
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(t), "$"), ",", ""))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be finite")
	}
	return f, nil
}
