package arxivid

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2301.00001", "2301.00001", true},
		{"arXiv:2301.00001", "2301.00001", true},
		{"2301.00001v3", "2301.00001", true},
		{"  2301.00001 ", "2301.00001", true},
		{"hep-th/9901001", "", false},
		{"not an id", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := Normalize(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFromURL(t *testing.T) {
	t.Parallel()

	if id, ok := FromURL("https://arxiv.org/abs/2301.00001v2"); !ok || id != "2301.00001" {
		t.Fatalf("unexpected abs result: %q %v", id, ok)
	}
	if id, ok := FromURL("http://arxiv.org/pdf/2301.00001.pdf"); !ok || id != "2301.00001" {
		t.Fatalf("unexpected pdf result: %q %v", id, ok)
	}
	if _, ok := FromURL("https://example.org/abs/2301.00001"); ok {
		t.Fatal("non-arxiv host should not match")
	}
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	text := `Check https://arxiv.org/abs/2302.99999 and the pdf
	https://arxiv.org/pdf/2301.00001v1.pdf plus a dup https://arxiv.org/abs/2302.99999`

	got := ExtractAll(text)
	want := []string{"2301.00001", "2302.99999"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractAll = %v, want %v", got, want)
	}

	if got := ExtractAll("no links here"); got != nil {
		t.Fatalf("expected nil for no matches, got %v", got)
	}
}

func TestExtractAllEscapedBackslashes(t *testing.T) {
	t.Parallel()

	got := ExtractAll(`https:\/\/arxiv.org\/abs\/2301.00001`)
	if len(got) != 1 || got[0] != "2301.00001" {
		t.Fatalf("expected escaped url to match, got %v", got)
	}
}
