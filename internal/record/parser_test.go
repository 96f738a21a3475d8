package record

import (
	"reflect"
	"testing"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"quoted comma", `"a,b",5`, []string{"a,b", "5"}},
		{"plain", "MLB,영업,팀A", []string{"MLB", "영업", "팀A"}},
		{"trailing empty kept", "a,b,,", []string{"a", "b", "", ""}},
		{"unclosed quote runs to end", `a,"b,c`, []string{"a", "b,c"}},
		{"doubled quote not unescaped", `"say ""hi""",x`, []string{"say hi", "x"}},
		{"grouped amount", `MLB,"1,234,567",202501`, []string{"MLB", "1,234,567", "202501"}},
		{"crlf", "a,b\r\n", []string{"a", "b"}},
		{"fields trimmed", " a , b ", []string{"a", "b"}},
		{"empty line", "", []string{""}},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestParseLineCustomDialect(t *testing.T) {
	got := ParseLine("a;'b;c';d", Dialect{Delimiter: ';', Quote: '\''})
	want := []string{"a", "b;c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("\ufeffh1,h2\r\n1,2\r\n\r\n  \n3,4")
	want := []string{"h1,h2", "1,2", "3,4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFieldAndIndexOf(t *testing.T) {
	headers := Parse("월, MLB ,KIDS")
	if IndexOf(headers, "MLB") != 1 {
		t.Fatalf("expected MLB at 1")
	}
	if IndexOf(headers, "DX") != -1 {
		t.Fatalf("expected missing column")
	}
	if Field(headers, 7) != "" || Field(headers, -1) != "" {
		t.Fatalf("out of range fields should be empty")
	}
}
