package shared

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestControlConfigGroups(t *testing.T) {
	cfg := MustControlConfig(`{
		"Motion": {
			"speed": {"value": 1.5, "min": 0, "max": 5, "step": 0.1, "label": "Speed"},
			"offset": {"value": [0.5, 0.25]}
		},
		"Look": {
			"color": {"value": "#ff0000"},
			"mode": {"value": "b", "options": {"Bravo": "b", "Alpha": "a"}},
			"tags": {"value": ["x", "y"]}
		}
	}`)

	groups, err := cfg.Groups()
	require.NoError(t, err)

	want := []ControlGroup{
		{Name: "Motion", Controls: []Control{
			{Name: "speed", Label: "Speed", Value: NumberValue(1.5), Min: ptr(0), Max: ptr(5), Step: ptr(0.1)},
			{Name: "offset", Value: ControlValue{Kind: ValueNumbers, Numbers: []float64{0.5, 0.25}}},
		}},
		{Name: "Look", Controls: []Control{
			{Name: "color", Value: StringValue("#ff0000")},
			{Name: "mode", Value: StringValue("b"), Options: []ControlOption{
				{Label: "Bravo", Value: StringValue("b")},
				{Label: "Alpha", Value: StringValue("a")},
			}},
			{Name: "tags", Value: ControlValue{Kind: ValueStrings, Strs: []string{"x", "y"}}},
		}},
	}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, ControlBounded, groups[0].Controls[0].Kind())
	assert.Equal(t, ControlPlain, groups[0].Controls[1].Kind())
	assert.Equal(t, ControlPlain, groups[1].Controls[0].Kind())
	assert.Equal(t, ControlChoice, groups[1].Controls[1].Kind())
	assert.Equal(t, "Speed", groups[0].Controls[0].DisplayLabel())
	assert.Equal(t, "color", groups[1].Controls[0].DisplayLabel())
}

func TestControlConfigChoiceWinsOverBounds(t *testing.T) {
	cfg := MustControlConfig(`{"G":{"n":{"value":1,"min":0,"max":2,"options":{"one":1,"two":2}}}}`)
	groups, err := cfg.Groups()
	require.NoError(t, err)
	assert.Equal(t, ControlChoice, groups[0].Controls[0].Kind())
}

func TestControlConfigShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		path string
	}{
		{"top level array", `[1,2]`, ""},
		{"group not object", `{"G": 3}`, "G"},
		{"control not object", `{"G": {"c": 3}}`, "G.c"},
		{"missing value", `{"G": {"c": {"min": 0}}}`, "G.c"},
		{"object value", `{"G": {"c": {"value": {"x": 1}}}}`, "G.c.value"},
		{"bounds on string", `{"G": {"c": {"value": "#fff", "min": 0}}}`, "G.c"},
		{"duplicate group", `{"G": {}, "G": {}}`, "G"},
		{"duplicate param", `{"G": {"c": {"value": 1}, "c": {"value": 2}}}`, "G.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MustControlConfig(tt.json).Groups()
			var shape *ControlShapeError
			require.True(t, errors.As(err, &shape), "got %v", err)
			assert.Equal(t, tt.path, shape.Path)
		})
	}
}

func TestControlConfigJSONRoundTripKeepsOrder(t *testing.T) {
	cfg := MustControlConfig(`{ "z": {"b": {"value": 1}, "a": {"value": 2}}, "y": {} }`)
	shader := Shader{ID: "s1", HTML: "x", JSON: cfg}

	data, err := json.Marshal(shader)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"json":{"z":{"b":{"value":1},"a":{"value":2}},"y":{}}`)

	var back Shader
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, cfg.String(), back.JSON.String())
	assert.Equal(t, []string{"z", "y"}, back.JSON.Keys())
}

func TestControlConfigZero(t *testing.T) {
	cfg, err := ParseControlConfig([]byte("  null "))
	require.NoError(t, err)
	assert.True(t, cfg.IsZero())
	assert.Equal(t, "null", cfg.String())

	groups, err := cfg.Groups()
	assert.NoError(t, err)
	assert.Empty(t, groups)
}

func TestControlValueOf(t *testing.T) {
	v, err := ControlValueOf(3)
	require.NoError(t, err)
	assert.True(t, v.Equal(NumberValue(3)))

	v, err = ControlValueOf([]interface{}{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, ValueStrings, v.Kind)

	_, err = ControlValueOf([]interface{}{1.0, "b"})
	assert.Error(t, err)

	_, err = ControlValueOf(true)
	assert.Error(t, err)
}
