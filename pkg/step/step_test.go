package step

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const triangleFile = `ISO-10303-21;
HEADER;
/* written by hand */
FILE_DESCRIPTION(('single triangle'),'2;1');
FILE_NAME('triangle.step','2026-01-01T00:00:00',(''),(''),'','','');
FILE_SCHEMA(('AUTOMOTIVE_DESIGN { 1 0 10303 214 1 1 1 1 }'));
ENDSEC;
DATA;
#1=CARTESIAN_POINT('',(0.,0.,0.));
#2=CARTESIAN_POINT('',(1.,0.,0.));
#3 = CARTESIAN_POINT ( 'origin' , ( 0. , 1.E0 , -2.5E-1 ) ) ;
#10=ORIENTED_EDGE('',*,*,#2,.T.);
#11=(GEOMETRIC_REPRESENTATION_CONTEXT(3)GLOBAL_UNIT_ASSIGNED_CONTEXT((#1,#2))REPRESENTATION_CONTEXT('',''));
#12=MEASURE_REPRESENTATION_ITEM('',LENGTH_MEASURE(25),$);
#13=APPLICATION_PROTOCOL_DEFINITION('','',"0FF",1994);
ENDSEC;
END-ISO-10303-21;
`

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	flat, err := StripFlatten([]byte(src))
	if err != nil {
		t.Fatalf("StripFlatten() error = %v", err)
	}
	f, err := Parse(flat)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return f
}

func TestStripFlatten(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace", "#1 = A ( 1 ,\n\t2 ) ;\r\n", "#1=A(1,2);"},
		{"comment", "A(/* x */1)", "A(1)"},
		{"string keeps spaces", "A('a b / * c')", "A('a b / * c')"},
		{"string drops line breaks", "A('ab\r\ncd')", "A('abcd')"},
		{"doubled apostrophe", "A('it''s here')", "A('it''s here')"},
		{"comment marker inside string", "A('/*')", "A('/*')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripFlatten([]byte(tt.in))
			if err != nil {
				t.Fatalf("StripFlatten() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("StripFlatten() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripFlattenErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unterminated comment", "A(1) /* never closed"},
		{"unterminated string", "A('open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StripFlatten([]byte(tt.in))
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("StripFlatten() error = %v, want *SyntaxError", err)
			}
		})
	}
}

func TestParseTriangleFile(t *testing.T) {
	f := mustParse(t, triangleFile)

	if f.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", f.Len())
	}
	if len(f.Header) != 3 {
		t.Fatalf("len(Header) = %d, want 3", len(f.Header))
	}
	wantSchema := []string{"AUTOMOTIVE_DESIGN { 1 0 10303 214 1 1 1 1 }"}
	if diff := cmp.Diff(wantSchema, f.Schema()); diff != "" {
		t.Errorf("Schema() mismatch (-want +got):\n%s", diff)
	}

	p := f.Get(3)
	if p == nil {
		t.Fatal("Get(3) = nil")
	}
	want := []Record{{
		Type: "CARTESIAN_POINT",
		Params: []Value{
			{Kind: KindString, Str: "origin"},
			{Kind: KindList, List: []Value{
				{Kind: KindReal, Real: 0},
				{Kind: KindReal, Real: 1},
				{Kind: KindReal, Real: -0.25},
			}},
		},
	}}
	if diff := cmp.Diff(want, p.Records); diff != "" {
		t.Errorf("#3 mismatch (-want +got):\n%s", diff)
	}

	e := f.Get(10)
	if got := e.Type(); got != "ORIENTED_EDGE" {
		t.Errorf("#10 Type() = %q, want ORIENTED_EDGE", got)
	}
	if e.Records[0].Params[1].Kind != KindDerived {
		t.Errorf("#10 param 1 kind = %v, want derived", e.Records[0].Params[1].Kind)
	}
	if b, ok := e.Records[0].Params[4].Bool(); !ok || !b {
		t.Errorf("#10 param 4 Bool() = %v, %v, want true, true", b, ok)
	}
}

func TestParseComplexInstance(t *testing.T) {
	f := mustParse(t, triangleFile)
	e := f.Get(11)
	if e.Type() != "" {
		t.Errorf("Type() = %q, want empty for complex instance", e.Type())
	}
	if len(e.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(e.Records))
	}
	if !e.Is("GLOBAL_UNIT_ASSIGNED_CONTEXT") {
		t.Error("Is(GLOBAL_UNIT_ASSIGNED_CONTEXT) = false, want true")
	}
	rec, ok := e.Record("GEOMETRIC_REPRESENTATION_CONTEXT")
	if !ok || len(rec.Params) != 1 || rec.Params[0].Int != 3 {
		t.Errorf("Record(GEOMETRIC_REPRESENTATION_CONTEXT) = %+v, %v", rec, ok)
	}
	if got, want := e.TypeName(), "(GEOMETRIC_REPRESENTATION_CONTEXT GLOBAL_UNIT_ASSIGNED_CONTEXT REPRESENTATION_CONTEXT)"; got != want {
		t.Errorf("TypeName() = %q, want %q", got, want)
	}
}

func TestParseTypedAndBinary(t *testing.T) {
	f := mustParse(t, triangleFile)

	m := f.Get(12).Records[0].Params[1]
	if m.Kind != KindTyped || m.Str != "LENGTH_MEASURE" || len(m.List) != 1 || m.List[0].Int != 25 {
		t.Errorf("typed value = %+v, want LENGTH_MEASURE(25)", m)
	}
	if got := f.Get(12).Records[0].Params[2].Kind; got != KindUnset {
		t.Errorf("unset kind = %v, want unset", got)
	}
	bin := f.Get(13).Records[0].Params[2]
	if bin.Kind != KindBinary || bin.Str != "0FF" {
		t.Errorf("binary = %+v, want 0FF", bin)
	}
}

func TestOfTypeAscending(t *testing.T) {
	f := mustParse(t, triangleFile)
	pts := f.OfType("CARTESIAN_POINT")
	if len(pts) != 3 {
		t.Fatalf("OfType() returned %d, want 3", len(pts))
	}
	for i, want := range []ID{1, 2, 3} {
		if pts[i].ID != want {
			t.Errorf("OfType()[%d].ID = %d, want %d", i, pts[i].ID, want)
		}
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, "plain"},
		{`back\\slash`, `back\slash`},
		{`caf\S\i`, "café"},
		{`\X\E9t\X\E9`, "été"},
		{`\X2\03B103B2\X0\`, "αβ"},
		{`\X4\0001F600\X0\`, "\U0001F600"},
		{`\PE\\S\P`, "\u0430"}, // ISO 8859-5 0xD0 is CYRILLIC SMALL LETTER A
		{`C:\dir\file`, `C:\dir\file`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := decodeString([]byte(tt.in))
			if err != nil {
				t.Fatalf("decodeString(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("decodeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	wrap := func(data string) string {
		return "ISO-10303-21;HEADER;ENDSEC;DATA;" + data + "ENDSEC;END-ISO-10303-21;"
	}
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no header", "ISO-10303-21;DATA;ENDSEC;END-ISO-10303-21;"},
		{"no data", "ISO-10303-21;HEADER;ENDSEC;END-ISO-10303-21;"},
		{"missing end", "ISO-10303-21;HEADER;ENDSEC;DATA;ENDSEC;"},
		{"trailing", wrap("") + "#1=A();"},
		{"duplicate id", wrap("#1=A();#1=B();")},
		{"missing semicolon", wrap("#1=A()")},
		{"bad param", wrap("#1=A(?);")},
		{"bad ref", wrap("#1=A(#);")},
		{"bad enum", wrap("#1=A(.T);")},
		{"bad exponent", wrap("#1=A(1.E);")},
		{"huge integer", wrap("#1=A(99999999999999999999);")},
		{"huge real", wrap("#1=A(1.E999);")},
		{"bad binary", wrap(`#1=A("XYZ");`)},
		{"bad wide escape", wrap(`#1=A('\X2\00E\X0\');`)},
		{"deep nesting", wrap("#1=A(" + strings.Repeat("(", MaxDepth+1) + strings.Repeat(")", MaxDepth+1) + ");")},
		{"empty complex", wrap("#1=();")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.in))
			if err == nil {
				t.Fatalf("Parse() = %v, nil; want error", f)
			}
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Errorf("Parse() error = %T %v, want *SyntaxError", err, err)
			}
		})
	}
}

func TestParseDoesNotRetainInput(t *testing.T) {
	flat, err := StripFlatten([]byte(triangleFile))
	if err != nil {
		t.Fatal(err)
	}
	f, err := Parse(flat)
	if err != nil {
		t.Fatal(err)
	}
	for i := range flat {
		flat[i] = 'x'
	}
	if got := f.Get(3).Records[0].Params[0].Str; got != "origin" {
		t.Errorf("string after clobbering input = %q, want origin", got)
	}
}

func FuzzParse(f *testing.F) {
	f.Add([]byte(triangleFile))
	f.Add([]byte("ISO-10303-21;HEADER;ENDSEC;DATA;#1=A((((1))));ENDSEC;END-ISO-10303-21;"))
	f.Fuzz(func(t *testing.T, data []byte) {
		flat, err := StripFlatten(data)
		if err != nil {
			return
		}
		_, _ = Parse(flat)
	})
}
