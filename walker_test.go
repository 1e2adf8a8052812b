package streamcable

import "testing"

type recordingVisitor struct {
	events []string
}

func (r *recordingVisitor) VisitScalar(path string, schema Schema, value Value) error {
	r.events = append(r.events, "scalar:"+path+"="+value.String())
	return nil
}

func (r *recordingVisitor) VisitArrayStart(path string, schema Schema, length int) error {
	r.events = append(r.events, "array-start:"+path)
	return nil
}

func (r *recordingVisitor) VisitArrayEnd(path string) error {
	r.events = append(r.events, "array-end:"+path)
	return nil
}

func (r *recordingVisitor) VisitObjectStart(path string, schema Schema) error {
	r.events = append(r.events, "object-start:"+path)
	return nil
}

func (r *recordingVisitor) VisitObjectEnd(path string) error {
	r.events = append(r.events, "object-end:"+path)
	return nil
}

func TestWalkVisitsFieldsAndElementsInOrder(t *testing.T) {
	schema := Object(
		Field("id", Uint()),
		Field("tags", Array(StringSchema())),
	)
	value := ObjectValue(map[string]Value{
		"id":   UintValue(7),
		"tags": ArrayValue([]Value{StringValue("a"), StringValue("b")}),
	})

	buf := &Buffer{}
	if err := Serialize(schema, value, NewBufferSink(buf), true, nil); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	rv := &recordingVisitor{}
	got, err := Walk(buf.Bytes, nil, rv)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if got.Kind() != KindObject {
		t.Fatalf("returned schema kind = %v", got.Kind())
	}

	want := []string{
		"object-start:",
		`scalar:id=7`,
		"array-start:tags",
		`scalar:tags[0]="a"`,
		`scalar:tags[1]="b"`,
		"array-end:tags",
		"object-end:",
	}
	if len(rv.events) != len(want) {
		t.Fatalf("events = %v, want %v", rv.events, want)
	}
	for i := range want {
		if rv.events[i] != want[i] {
			t.Fatalf("event %d = %q, want %q (full: %v)", i, rv.events[i], want[i], rv.events)
		}
	}
}

type skippingVisitor struct {
	sawEnd  bool
	scalars []string
}

func (s *skippingVisitor) VisitScalar(path string, schema Schema, value Value) error {
	s.scalars = append(s.scalars, path+"="+value.String())
	return nil
}
func (s *skippingVisitor) VisitArrayStart(path string, schema Schema, length int) error {
	return ErrSkipVisit
}
func (s *skippingVisitor) VisitArrayEnd(path string) error { s.sawEnd = true; return nil }
func (s *skippingVisitor) VisitObjectStart(path string, schema Schema) error {
	if path == "" {
		return nil
	}
	return ErrSkipVisit
}
func (s *skippingVisitor) VisitObjectEnd(path string) error { return nil }

func TestWalkSkipVisitStillConsumesBytesForSibling(t *testing.T) {
	schema := Object(
		Field("a", Array(Uint())),
		Field("b", Uint()),
	)
	value := ObjectValue(map[string]Value{
		"a": ArrayValue([]Value{UintValue(1), UintValue(2), UintValue(3)}),
		"b": UintValue(99),
	})

	buf := &Buffer{}
	if err := Serialize(schema, value, NewBufferSink(buf), true, nil); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	sv := &skippingVisitor{}
	if _, err := Walk(buf.Bytes, nil, sv); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if !sv.sawEnd {
		t.Fatalf("VisitArrayEnd not called for the skipped array")
	}
	if len(sv.scalars) != 1 || sv.scalars[0] != "b=99" {
		t.Fatalf("scalars = %v, want just the sibling [b=99]", sv.scalars)
	}
}

func TestWalkUsesExpectedSchemaWhenNotEmbedded(t *testing.T) {
	schema := StringSchema()
	buf := &Buffer{}
	if err := Serialize(schema, StringValue("hi"), NewBufferSink(buf), false, nil); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	rv := &recordingVisitor{}
	if _, err := Walk(buf.Bytes, nil, rv); err == nil {
		t.Fatalf("expected ErrNoSchema when no expected schema is given")
	}

	rv2 := &recordingVisitor{}
	got, err := Walk(buf.Bytes, &schema, rv2)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if got.Kind() != KindString {
		t.Fatalf("kind = %v", got.Kind())
	}
	if len(rv2.events) != 1 || rv2.events[0] != `scalar:="hi"` {
		t.Fatalf("events = %v", rv2.events)
	}
}
