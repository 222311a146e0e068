package merge

import (
	"fmt"
	"strings"

	"github.com/Modou1ngom/cofidash/objective"
)

// GenericField is written on every matched agency, whatever the target.
const GenericField = "objectif"

// Target describes what a merge pass looks for and where it writes.
type Target struct {
	Name     string
	Types    []objective.Type
	Strategy Strategy

	// Field receives the resolved value next to GenericField.
	Field string

	// When RateField is set, RateField = round(100 * RateMetric / value, 2)
	// for matched agencies with a numeric RateMetric and a positive value.
	RateMetric string
	RateField  string
}

var (
	TargetClient = Target{
		Name:  "client",
		Types: []objective.Type{objective.TypeClient},
		Field: "OBJECTIF_CLIENT",
	}
	TargetProduction = Target{
		Name:  "production",
		Types: []objective.Type{objective.TypeProduction},
		Field: "OBJECTIF_PRODUCTION",
	}
	TargetPrepaidCard = Target{
		Name:       "prepaid_card",
		Types:      []objective.Type{objective.TypePrepaidCard},
		Field:      "OBJECTIF_COFICARTE",
		RateMetric: "NOMBRE_COFICARTE_VENDU_M",
		RateField:  "TAUX_REALISATION",
	}
	// TargetSavings combines simple and project savings objectives.
	TargetSavings = Target{
		Name:     "savings",
		Types:    []objective.Type{objective.TypeEpargneSimple, objective.TypeEpargneProjet},
		Strategy: StrategySum,
		Field:    "OBJECTIF",
	}
)

// TargetFor returns the single-type target for t. Types without a
// dedicated field write OBJECTIF_PRODUCTION.
func TargetFor(t objective.Type) Target {
	switch t {
	case objective.TypeClient:
		return TargetClient
	case objective.TypePrepaidCard:
		return TargetPrepaidCard
	case objective.TypeProduction:
		return TargetProduction
	}
	return Target{
		Name:  strings.ToLower(string(t)),
		Types: []objective.Type{t},
		Field: TargetProduction.Field,
	}
}

// ParseTarget accepts a target name ("savings", "client", ...) or an
// objective type ("PREPAID_CARD").
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TargetClient.Name:
		return TargetClient, nil
	case TargetProduction.Name:
		return TargetProduction, nil
	case TargetPrepaidCard.Name:
		return TargetPrepaidCard, nil
	case TargetSavings.Name, "epargne":
		return TargetSavings, nil
	}
	t, err := objective.ParseType(s)
	if err != nil {
		return Target{}, fmt.Errorf("unknown merge target %q: %w", s, err)
	}
	return TargetFor(t), nil
}

// Query is the objective selection for this target.
func (t Target) Query(year int, month *int) objective.Query {
	return objective.Query{Types: t.Types, Year: year, Month: month}
}
