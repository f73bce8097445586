/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the tracker with realistic
	policies for demos. Dates are relative to the service clock, so a
	scenario shows the same mix of statuses whenever it is loaded.

AVAILABLE SCENARIOS:

	mixed-statuses: One trust in every derived status
	letters-due:    Several Crummey letters past their send date
	explicit-dates: Typed-in send dates that survive a recalculation

HOW SCENARIOS WORK:
 1. Build policy inputs relative to today
 2. Create each one through the manual-entry path (derivation + classification)
 3. Apply follow-up actions (mark sent, etc.)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "letters-due"}

NOTE:

	Scenarios add policies; they never clear existing ones.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/ilit-engine/ilit"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "mixed-statuses",
		Name:        "Mixed Statuses",
		Description: "Five trusts covering Not Started, Pending, Due Soon, Overdue and Letter Sent",
	},
	{
		ID:          "letters-due",
		Name:        "Letters Due",
		Description: "Three Crummey letters whose send date has passed",
	},
	{
		ID:          "explicit-dates",
		Name:        "Explicit Send Dates",
		Description: "Send dates typed in by a user next to derived ones",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario creates the policies of one scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context, ilit.Date) ([]ilit.PolicyRecord, error)
	switch req.ScenarioID {
	case "mixed-statuses":
		loader = h.loadMixedStatusesScenario
	case "letters-due":
		loader = h.loadLettersDueScenario
	case "explicit-dates":
		loader = h.loadExplicitDatesScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q not found", req.ScenarioID))
		return
	}

	created, err := loader(r.Context(), ilit.DateOf(h.Service.Now().UTC()))
	if err != nil {
		writeServiceError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario": req.ScenarioID,
		"policies": toPolicyDTOs(created),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMixedStatusesScenario(ctx context.Context, today ilit.Date) ([]ilit.PolicyRecord, error) {
	inputs := []ilit.PolicyRecord{
		demoPolicy("Anderson Family ILIT", "Paul Anderson", "UL-3001", ilit.Date{}, "3200"),
		demoPolicy("Baker Legacy ILIT", "Helen Baker", "WL-3002", today.AddDays(40), "1800"),
		demoPolicy("Carter Dynasty ILIT", "Owen Carter", "UL-3003", today.AddDays(10), "950"),
		demoPolicy("Diaz Irrevocable Trust", "Lucia Diaz", "TL-3004", today.AddDays(-5), "600"),
		demoPolicy("Evans Family ILIT", "Grace Evans", "WL-3005", today.AddDays(20), "2750"),
	}
	created, err := h.createAll(ctx, inputs)
	if err != nil {
		return nil, err
	}

	sent, err := h.Service.MarkLetterSent(ctx, created[4].ID, today.AddDays(-12))
	if err != nil {
		return nil, err
	}
	created[4] = sent
	return created, nil
}

func (h *Handler) loadLettersDueScenario(ctx context.Context, today ilit.Date) ([]ilit.PolicyRecord, error) {
	return h.createAll(ctx, []ilit.PolicyRecord{
		demoPolicy("Foster Children's ILIT", "Mark Foster", "UL-4001", today.AddDays(3), "1200"),
		demoPolicy("Garcia Family ILIT", "Rosa Garcia", "WL-4002", today.AddDays(15), "4100"),
		demoPolicy("Hughes Survivorship ILIT", "Alan Hughes", "SUL-4003", today.AddDays(25), "8800"),
	})
}

func (h *Handler) loadExplicitDatesScenario(ctx context.Context, today ilit.Date) ([]ilit.PolicyRecord, error) {
	derived := demoPolicy("Ito Family ILIT", "Ken Ito", "UL-5001", today.AddDays(75), "2300")
	explicit := demoPolicy("Jensen Trust", "Nora Jensen", "WL-5002", today.AddDays(75), "2300")
	explicit.CrummeyLetterSendDate = today.AddDays(30)
	explicit.Notes = "Trustee asked for letters a month and a half ahead"
	return h.createAll(ctx, []ilit.PolicyRecord{derived, explicit})
}

func (h *Handler) createAll(ctx context.Context, inputs []ilit.PolicyRecord) ([]ilit.PolicyRecord, error) {
	created := make([]ilit.PolicyRecord, 0, len(inputs))
	for _, in := range inputs {
		r, err := h.Service.CreatePolicy(ctx, in)
		if err != nil {
			return nil, err
		}
		created = append(created, r)
	}
	return created, nil
}

func demoPolicy(trust, insured, number string, due ilit.Date, amount string) ilit.PolicyRecord {
	return ilit.PolicyRecord{
		IlitName:         trust,
		InsuredName:      insured,
		InsuranceCompany: "Demo Mutual Life",
		PolicyNumber:     number,
		Frequency:        "Annual",
		PremiumDueDate:   due,
		PremiumAmount:    decimal.NewNullDecimal(decimal.RequireFromString(amount)),
	}
}
