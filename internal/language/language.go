package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Target is one translation target language.
type Target struct {
	// Code is the canonical base code used in file names and config,
	// e.g. "zh" or "pt".
	Code string
	tag  language.Tag
}

// Parse resolves a user-supplied BCP 47 code ("zh", "zh-Hant", "en-US")
// into a Target. Unknown or malformed codes are rejected rather than
// guessed at.
func Parse(code string) (Target, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Target{}, fmt.Errorf("empty language code")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return Target{}, fmt.Errorf("unrecognized language code %q: %w", trimmed, err)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return Target{}, fmt.Errorf("language code %q has no base language", trimmed)
	}
	return Target{Code: base.String(), tag: tag}, nil
}

// ParseAll parses a list of target codes, deduplicating by base language.
func ParseAll(codes []string) ([]Target, error) {
	seen := make(map[string]struct{}, len(codes))
	targets := make([]Target, 0, len(codes))
	for _, code := range codes {
		target, err := Parse(code)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[target.Code]; dup {
			continue
		}
		seen[target.Code] = struct{}{}
		targets = append(targets, target)
	}
	return targets, nil
}

// DisplayName returns the English name of the target language, for prompts
// and progress output. Falls back to the code when no name is known.
func (t Target) DisplayName() string {
	if t.tag.IsRoot() {
		return t.Code
	}
	if name := display.English.Tags().Name(t.tag); name != "" {
		return name
	}
	return t.Code
}

// Matches reports whether a subtitle track code refers to the same base
// language as the target, so "en-US", "en-GB" and "eng" all match "en".
func (t Target) Matches(trackCode string) bool {
	tag, err := language.Parse(strings.TrimSpace(trackCode))
	if err != nil {
		return false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return false
	}
	return base.String() == t.Code
}
