package streamcable

import (
	"reflect"
	"testing"
)

type person struct {
	Name string   `streamcable:"name"`
	Age  int      `streamcable:"age"`
	Tags []string `streamcable:"tags"`
	Note *string  `streamcable:"note,omitempty"`
}

func TestSchemaOfStruct(t *testing.T) {
	s, err := SchemaOf(reflect.TypeOf(person{}))
	if err != nil {
		t.Fatalf("SchemaOf: %v", err)
	}
	if s.Kind() != KindObject {
		t.Fatalf("kind = %v", s.Kind())
	}
	names := make(map[string]SchemaKind)
	for _, f := range s.Fields() {
		names[f.Name] = f.Schema.Kind()
	}
	if names["name"] != KindString || names["age"] != KindInt || names["tags"] != KindArray {
		t.Fatalf("unexpected field kinds: %v", names)
	}
	if names["note"] != KindOptional {
		t.Fatalf("omitempty field should be Optional, got %v", names["note"])
	}
}

func TestValueOfAndLoadIntoRoundTrip(t *testing.T) {
	alice := person{Name: "Alice", Age: 30, Tags: []string{"engineer", "go"}}

	schema, err := SchemaOf(reflect.TypeOf(alice))
	if err != nil {
		t.Fatalf("SchemaOf: %v", err)
	}
	value, err := ValueOf(reflect.ValueOf(alice))
	if err != nil {
		t.Fatalf("ValueOf: %v", err)
	}
	if err := schema.Validate(value); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	buf := &Buffer{}
	if err := Serialize(schema, value, NewBufferSink(buf), true, nil); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	_, decoded, err := Deserialize(NewSliceSource(buf.Bytes), nil, nil)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	var out person
	if err := LoadInto(&out, decoded); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if out.Name != "Alice" || out.Age != 30 || len(out.Tags) != 2 || out.Note != nil {
		t.Fatalf("round-tripped as %+v", out)
	}
}

func TestStructFieldUntaggedFallsBackToLowercaseName(t *testing.T) {
	type Widget struct {
		Color string
	}
	s, err := SchemaOf(reflect.TypeOf(Widget{}))
	if err != nil {
		t.Fatalf("SchemaOf: %v", err)
	}
	if s.Fields()[0].Name != "color" {
		t.Fatalf("field name = %q, want %q", s.Fields()[0].Name, "color")
	}
}

func TestStructFieldDashSkipsField(t *testing.T) {
	type Widget struct {
		Visible string `streamcable:"name"`
		Hidden  string `streamcable:"-"`
	}
	s, err := SchemaOf(reflect.TypeOf(Widget{}))
	if err != nil {
		t.Fatalf("SchemaOf: %v", err)
	}
	if len(s.Fields()) != 1 || s.Fields()[0].Name != "name" {
		t.Fatalf("fields = %v, want just {name}", s.Fields())
	}
}
