package toon

import (
	"strings"
	"testing"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.js", "src/main.js"},
		{"dollar name", "$get", "$get"},
		{"kind", "java-method", "java-method"},
		{"warning", "lib/a.js: permission denied", `"lib/a.js: permission denied"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeReport(t *testing.T) {
	t.Parallel()

	r := &model.Report{
		ChangedFunction: "getTaxRate",
		Dependents:      []string{"calculateTax", "calculateTotal"},
		Depth:           map[string]int{"calculateTax": 1, "calculateTotal": 2},
		Parents: map[string][]string{
			"getTaxRate":   {"calculateTax"},
			"calculateTax": {"calculateTotal"},
		},
		Locations: map[string][]model.FunctionLocation{
			"getTaxRate":     {{Name: "getTaxRate", File: "main.js", Line: 9, Kind: model.Declaration}},
			"calculateTax":   {{Name: "calculateTax", File: "main.js", Line: 5, Kind: model.Declaration}},
			"calculateTotal": {},
		},
		Missing:    []string{"calculateTotal"},
		Final:      true,
		Generation: 3,
	}

	got := EncodeReport(r)
	want := strings.Join([]string{
		"function: getTaxRate",
		"graph_generation: 3",
		"final: true",
		"dependents[2]{name,depth,parent}:",
		"  calculateTax,1,getTaxRate",
		"  calculateTotal,2,calculateTax",
		"locations[2]{name,file,line,kind}:",
		"  getTaxRate,main.js,9,declaration",
		"  calculateTax,main.js,5,declaration",
		"missing[1]: calculateTotal",
	}, "\n")
	if got != want {
		t.Errorf("EncodeReport mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestEncodeReportWarningsAndTruncation(t *testing.T) {
	t.Parallel()

	r := &model.Report{
		ChangedFunction: "a",
		Dependents:      []string{"b"},
		Truncated:       true,
		Warnings:        []string{"reporting 1 of 2 dependents", "x.js: denied"},
	}
	got := EncodeReport(r)
	if !strings.Contains(got, "truncated: true") {
		t.Errorf("missing truncation marker:\n%s", got)
	}
	if !strings.Contains(got, `warnings[2]: reporting 1 of 2 dependents,"x.js: denied"`) {
		t.Errorf("warnings not encoded:\n%s", got)
	}
	// No parent recorded renders as an empty cell.
	if !strings.Contains(got, `  b,0,""`) {
		t.Errorf("dependent row:\n%s", got)
	}
}

func TestEncodeFunctions(t *testing.T) {
	t.Parallel()

	got := EncodeFunctions([]model.FunctionLocation{
		{Name: "findById", File: "src/UserService.java", Line: 6, Kind: model.JavaMethod},
		{Name: "load", File: "lib/io.py", Line: 1, Kind: model.PythonFunction},
	})
	want := "functions[2]{name,file,line,kind}:\n" +
		"  findById,src/UserService.java,6,java-method\n" +
		"  load,lib/io.py,1,python-function"
	if got != want {
		t.Errorf("EncodeFunctions = %q, want %q", got, want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := EncodeReport(&model.Report{ChangedFunction: "lonely", Dependents: []string{}})
	if !strings.Contains(got, "dependents[0]{name,depth,parent}:") {
		t.Errorf("expected empty dependents section, got:\n%s", got)
	}
	if !strings.Contains(got, "locations[0]{name,file,line,kind}:") {
		t.Errorf("expected empty locations section, got:\n%s", got)
	}
	if strings.Contains(got, "missing") {
		t.Errorf("unexpected missing section, got:\n%s", got)
	}

	if got := EncodeFunctions(nil); got != "functions[0]{name,file,line,kind}:" {
		t.Errorf("EncodeFunctions(nil) = %q", got)
	}
}
