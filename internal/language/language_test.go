package language

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"zh", "zh", false},
		{"zh-Hant", "zh", false},
		{"en-US", "en", false},
		{"eng", "en", false},
		{"PT", "pt", false},
		{" ja ", "ja", false},
		{"", "", true},
		{"not-a-language!", "", true},
	}
	for _, tc := range cases {
		target, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if target.Code != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.in, target.Code, tc.want)
		}
	}
}

func TestParseAllDeduplicates(t *testing.T) {
	targets, err := ParseAll([]string{"zh", "zh-Hant", "ja"})
	if err != nil {
		t.Fatalf("parse all: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2 (zh deduplicated)", len(targets))
	}
	if targets[0].Code != "zh" || targets[1].Code != "ja" {
		t.Fatalf("unexpected targets: %+v", targets)
	}
}

func TestDisplayName(t *testing.T) {
	target, err := Parse("zh")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if name := target.DisplayName(); name != "Chinese" {
		t.Fatalf("display name = %q, want Chinese", name)
	}
}

func TestMatches(t *testing.T) {
	target, err := Parse("en")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, code := range []string{"en", "en-US", "en-GB", "eng"} {
		if !target.Matches(code) {
			t.Errorf("expected %q to match en", code)
		}
	}
	for _, code := range []string{"de", "zh-Hans", "", "???"} {
		if target.Matches(code) {
			t.Errorf("expected %q not to match en", code)
		}
	}
}
