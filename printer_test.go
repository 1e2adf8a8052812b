package streamcable

import "testing"

func TestSchemaStringRendersTypeExpression(t *testing.T) {
	s := Object(
		Field("age", Uint()),
		Field("name", StringSchema()),
		Field("tags", Nullable(func() *Schema { a := Array(StringSchema()); return &a }())),
	)
	got := s.String()
	want := "object{age:uint,name:string,tags:nullable(array<string>)}"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSchemaStringNullableOfNull(t *testing.T) {
	if got, want := Nullable(nil).String(), "nullable(null)"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSchemaStringUnionPreservesOrder(t *testing.T) {
	got := Union(StringSchema(), Uint(), Boolean()).String()
	want := "union<string,uint,boolean>"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestValueStringScalars(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{BoolValue(true), "true"},
		{UintValue(42), "42"},
		{IntValue(-7), "-7"},
		{StringValue("hi"), `"hi"`},
		{NullValue(), "null"},
		{BytesValue([]byte{0xDE, 0xAD}), "0xdead"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Fatalf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestValueStringTruncatesLongPayloads(t *testing.T) {
	long := make([]byte, maxPrintedBytes+10)
	for i := range long {
		long[i] = 'a'
	}
	got := StringValue(string(long)).String()
	if got[len(got)-3:] != "..." {
		t.Fatalf("expected truncated string to end in ..., got %q", got)
	}
}

func TestValueStringCompound(t *testing.T) {
	v := ArrayValue([]Value{UintValue(1), UintValue(2)})
	if got, want := v.String(), "[1,2]"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
