package jsonschema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchemaUnmarshal(t *testing.T) {
	var s Schema
	err := json.Unmarshal([]byte(`{
		"type": "object",
		"properties": {
			"b": {"type": "string", "minLength": 2, "pattern": "[a-z]+"},
			"a": {"type": "number"},
			"c": {"type": "array", "items": {"type": "integer"}, "maxItems": 3}
		},
		"required": ["b"]
	}`), &s)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, names); diff != "" {
		t.Errorf("property order (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"b"}, s.Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}

	b := s.Properties[0]
	if b.MinLength != 2 || b.Pattern != "[a-z]+" {
		t.Errorf("string constraints not decoded: %+v", b)
	}

	c := s.Properties[2]
	if c.Items == nil || c.Items.Type != "integer" || c.MaxItems != 3 {
		t.Errorf("array constraints not decoded: %+v", c)
	}
}

func TestSchemaItemsForms(t *testing.T) {
	cases := []struct {
		name string
		in   string
		set  bool
	}{
		{"object", `{"items": {"type": "string"}}`, true},
		{"true", `{"items": true}`, true},
		{"false", `{"items": false}`, false},
		{"null", `{"items": null}`, false},
		{"missing", `{}`, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			var s Schema
			if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
				t.Fatal(err)
			}
			if got := s.Items != nil; got != tt.set {
				t.Errorf("Items set = %v, want %v", got, tt.set)
			}
		})
	}
}

func TestEffectiveType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"type": "string"}`, "string"},
		{`{"properties": {"a": {}}}`, "object"},
		{`{"items": {}}`, "array"},
		{`{}`, "value"},
	}
	for _, tt := range cases {
		var s Schema
		if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
			t.Fatal(err)
		}
		if got := s.EffectiveType(); got != tt.want {
			t.Errorf("%s: EffectiveType = %q, want %q", tt.in, got, tt.want)
		}
	}
}
