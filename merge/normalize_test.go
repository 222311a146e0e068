package merge_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Modou1ngom/cofidash/hierarchy"
	"github.com/Modou1ngom/cofidash/merge"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" Agence   Nord ", "AGENCE NORD"},
		{"Créteil", "CRETEIL"},
		{"Thiès\tCentre\n", "THIES CENTRE"},
		{"ZIGUINCHOR", "ZIGUINCHOR"},
		{"Œuvre", "OEUVRE"},
		{"Agence\x00Sud", "AGENCESUD"},
		{"Agence \xff Est", "AGENCE EST"},
		{"日本", ""},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, merge.Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, s := range []string{" Agence   Nord ", "Créteil", "dk-01 "} {
		once := merge.Normalize(s)
		assert.Equal(t, once, merge.Normalize(once))
	}
}

func TestIdentityOf_ScalarIdentifiers(t *testing.T) {
	id := merge.IdentityOf(hierarchy.FromAny(map[string]any{"CODE_AGENCE": json.Number("101")}))
	assert.Equal(t, "101", id.NormCode)

	id = merge.IdentityOf(hierarchy.FromAny(map[string]any{"code": 101, "name": " a1"}))
	assert.Equal(t, "101", id.NormCode)
	assert.Equal(t, "A1", id.NormName)

	// Booleans, nulls and objects carry no identifier.
	_, ok := merge.AgencyOf(hierarchy.FromAny(map[string]any{
		"code": true,
		"name": nil,
		"NOM":  map[string]any{"a": 1},
	}))
	assert.False(t, ok)
}

func TestIdentityOf(t *testing.T) {
	node := hierarchy.FromAny(map[string]any{
		"NOM":         "  Agence   Médina ",
		"LIBELLE":     "ignored",
		"CODE_AGENCE": "",
		"CODE":        "md-7",
	})
	id := merge.IdentityOf(node)
	assert.Equal(t, "AGENCE   MÉDINA", id.Name)
	assert.Equal(t, "MD-7", id.Code)
	assert.Equal(t, "AGENCE MEDINA", id.NormName)
	assert.Equal(t, "MD-7", id.NormCode)

	nameOnly := merge.IdentityOf(hierarchy.FromAny(map[string]any{"name": "Louga"}))
	assert.Equal(t, "LOUGA", nameOnly.Code, "code falls back to name")
	assert.Equal(t, []string{"LOUGA"}, nameOnly.Candidates())
}

func TestAgencyOf(t *testing.T) {
	_, ok := merge.AgencyOf(hierarchy.FromAny(map[string]any{"code": "A1"}))
	assert.True(t, ok)

	for _, marker := range []string{"agencies", "totals", "service_points"} {
		_, ok := merge.AgencyOf(hierarchy.FromAny(map[string]any{"code": "A1", marker: nil}))
		assert.False(t, ok, marker)
	}

	_, ok = merge.AgencyOf(hierarchy.FromAny(map[string]any{"metric": 3}))
	assert.False(t, ok, "no identity")
}
