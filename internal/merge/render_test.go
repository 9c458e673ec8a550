package merge

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	headers := []string{"Name", "Email", "Company"}

	tests := []struct {
		name string
		text string
		row  []string
		want string
	}{
		{
			name: "substitutes-known-placeholders",
			text: "Hi ((Name)), news for ((Company))",
			row:  []string{"Ann", "ann@x.com", "Acme"},
			want: "Hi Ann, news for Acme",
		},
		{
			name: "short-row-yields-empty",
			text: "Hi ((Name)) from ((Company))",
			row:  []string{"Bo"},
			want: "Hi Bo from ",
		},
		{
			name: "unknown-placeholder-passes-through",
			text: "Hi ((Nick))",
			row:  []string{"Ann", "ann@x.com", "Acme"},
			want: "Hi ((Nick))",
		},
		{
			name: "exact-match-is-case-sensitive",
			text: "Hi ((name))",
			row:  []string{"Ann", "ann@x.com", "Acme"},
			want: "Hi ((name))",
		},
		{
			name: "repeated-placeholder",
			text: "((Name)) ((Name))",
			row:  []string{"Ann"},
			want: "Ann Ann",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got := Render(tc.text, headers, tc.row)
			if got != tc.want {
				t.Fatalf("Render = %q, want %q", got, tc.want)
			}
			// A second pass must be a no-op: no matching pattern remains.
			if again := Render(got, headers, tc.row); again != got {
				t.Fatalf("second render changed output: %q -> %q", got, again)
			}
		})
	}
}

func TestRenderEndToEnd(t *testing.T) {
	headers := []string{"Name", "Email"}
	rows := [][]string{{"Ann", "ann@x.com"}, {"Bo", "bo@x.com"}}

	want := []string{"Hi Ann", "Hi Bo"}
	for i, row := range rows {
		if got := Render("Hi ((Name))", headers, row); got != want[i] {
			t.Fatalf("row %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestAppendSignature(t *testing.T) {
	got := AppendSignature("Hello", `<div>Best,<br></div><div>Ann &amp; co</div>`)
	if !strings.HasPrefix(got, "Hello\n\n") {
		t.Fatalf("signature not separated by two newlines: %q", got)
	}
	if strings.Contains(got, "<") {
		t.Fatalf("markup not stripped: %q", got)
	}
	if !strings.Contains(got, "Ann & co") {
		t.Fatalf("entities not decoded: %q", got)
	}

	if got := AppendSignature("Hello", ""); got != "Hello" {
		t.Fatalf("empty signature changed body: %q", got)
	}
	if got := AppendSignature("Hello", "<p> </p>"); got != "Hello" {
		t.Fatalf("whitespace-only signature changed body: %q", got)
	}
}
