package hierarchy_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Modou1ngom/cofidash/hierarchy"
)

const sample = `{
	"hierarchicalData": {
		"TERRITOIRE": {
			"territoire_nord": {
				"name": "TERRITOIRE NORD",
				"agencies": [
					{"CODE_AGENCE": 101, "NOM_AGENCE": "Agence Nord", "NOMBRE_COFICARTE_VENDU_M": "25"},
					"not-an-object"
				]
			}
		}
	},
	"total": 12.5
}`

func TestFromAny_RoundTrip(t *testing.T) {
	payload, err := hierarchy.Unmarshal([]byte(sample))
	require.NoError(t, err)

	tree := hierarchy.FromAny(payload)
	assert.Equal(t, hierarchy.KindObject, tree.Kind())
	assert.Empty(t, cmp.Diff(payload, tree.Map()))
}

func TestNode_DoesNotAliasSource(t *testing.T) {
	payload := map[string]any{"agencies": []any{map[string]any{"code": "A1"}}}
	tree := hierarchy.FromAny(payload)

	agencies, ok := tree.Field("agencies")
	require.True(t, ok)
	agencies.Items()[0].Set("objectif", int64(5))

	original := payload["agencies"].([]any)[0].(map[string]any)
	assert.NotContains(t, original, "objectif")

	rebuilt := tree.Map()["agencies"].([]any)[0].(map[string]any)
	assert.Equal(t, int64(5), rebuilt["objectif"])
}

func TestNode_Accessors(t *testing.T) {
	payload, err := hierarchy.Unmarshal([]byte(sample))
	require.NoError(t, err)
	tree := hierarchy.FromAny(payload)

	group, ok := tree.Path("hierarchicalData", "TERRITOIRE", "territoire_nord")
	require.True(t, ok)
	assert.Equal(t, []string{"agencies", "name"}, group.Keys())

	agencies, _ := group.Field("agencies")
	require.Len(t, agencies.Items(), 2)
	assert.False(t, agencies.Items()[1].IsObject())

	agency := agencies.Items()[0]
	assert.Equal(t, "101", agency.Text("CODE_AGENCE"))
	assert.Equal(t, "Agence Nord", agency.Text("NOM_AGENCE"))
	assert.Equal(t, "", agency.Text("missing"))

	sold, ok := agency.Number("NOMBRE_COFICARTE_VENDU_M")
	require.True(t, ok)
	assert.Equal(t, "25", sold.String())

	_, ok = tree.Path("hierarchicalData", "POINT SERVICES")
	assert.False(t, ok)
}

func TestUnmarshal_RejectsNonObject(t *testing.T) {
	_, err := hierarchy.Unmarshal([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = hierarchy.Unmarshal([]byte(`null`))
	assert.Error(t, err)
}

func TestScalarNumber(t *testing.T) {
	for _, v := range []any{int(3), int64(3), float64(3), "3", " 3 "} {
		d, ok := hierarchy.ScalarNumber(v)
		require.True(t, ok, "%T", v)
		assert.True(t, d.IntPart() == 3)
	}
	_, ok := hierarchy.ScalarNumber(true)
	assert.False(t, ok)
	_, ok = hierarchy.ScalarNumber("abc")
	assert.False(t, ok)
}
