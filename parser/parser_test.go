package parser

import (
	"slices"
	"testing"
)

// feed advances p across s, failing the test if a character is rejected.
func feed(t *testing.T, p Parser, s string) Parser {
	t.Helper()
	for _, r := range s {
		if !p.AllowedCharacters().Contains(r) {
			t.Fatalf("character %q rejected after %q", r, s)
		}
		p = p.Advance(r)
	}
	return p
}

// accepts reports whether p accepts s as a complete output.
func accepts(p Parser, s string) bool {
	for _, r := range s {
		if !p.AllowedCharacters().Contains(r) {
			return false
		}
		p = p.Advance(r)
	}
	return p.CanEnd()
}

func allowedRunes(p Parser) []rune {
	runes := p.AllowedCharacters().Values()
	slices.Sort(runes)
	return runes
}

func TestForceStop(t *testing.T) {
	var p Parser = ForceStop{}
	if !p.CanEnd() {
		t.Error("ForceStop should allow ending")
	}
	if p.AllowedCharacters().Size() != 0 {
		t.Error("ForceStop should allow no characters")
	}
	if p.Advance('x').AllowedCharacters().Size() != 0 {
		t.Error("ForceStop should stay stopped")
	}
}

func TestStringParser(t *testing.T) {
	p := NewString("abc").WithConfig(DefaultConfig())

	if got := allowedRunes(p); !slices.Equal(got, []rune{'a'}) {
		t.Errorf("allowed = %q, want [a]", got)
	}
	if p.CanEnd() {
		t.Error("fresh literal parser should not end")
	}

	p = feed(t, p, "ab")
	if got := allowedRunes(p); !slices.Equal(got, []rune{'c'}) {
		t.Errorf("allowed after ab = %q, want [c]", got)
	}

	p = feed(t, p, "c")
	if !p.CanEnd() {
		t.Error("literal parser should end after full match")
	}
	if p.AllowedCharacters().Size() != 0 {
		t.Error("completed literal parser should allow nothing")
	}
}

func TestStringParserCacheKey(t *testing.T) {
	a := feed(t, NewString("xab").WithConfig(DefaultConfig()), "x")
	b := feed(t, NewString("yab").WithConfig(DefaultConfig()), "y")
	if a.CacheKey() != b.CacheKey() {
		t.Errorf("states with identical remainders should share a cache key: %v != %v", a.CacheKey(), b.CacheKey())
	}
}

func TestUnionParser(t *testing.T) {
	p := NewUnion(NewString("cat"), NewString("car"), NewString("dog")).WithConfig(DefaultConfig())

	if got := allowedRunes(p); !slices.Equal(got, []rune{'c', 'd'}) {
		t.Errorf("allowed = %q, want [c d]", got)
	}

	p = feed(t, p, "ca")
	if got := allowedRunes(p); !slices.Equal(got, []rune{'r', 't'}) {
		t.Errorf("allowed after ca = %q, want [r t]", got)
	}

	p = feed(t, p, "t")
	if !p.CanEnd() {
		t.Error("union should end after one alternative completes")
	}
}

func TestSequenceParser(t *testing.T) {
	p := NewSequence(NewString("ab"), NewString("cd")).WithConfig(DefaultConfig())

	for _, s := range []string{"abcd"} {
		if !accepts(p, s) {
			t.Errorf("sequence should accept %q", s)
		}
	}
	for _, s := range []string{"ab", "abc", "abdc", "cdab", ""} {
		if accepts(p, s) {
			t.Errorf("sequence should reject %q", s)
		}
	}
}

func TestSequenceParserTransparentHead(t *testing.T) {
	// The optional head can be skipped entirely.
	opt := NewUnion(NewString(""), NewString("-"))
	p := NewSequence(opt, NewString("5")).WithConfig(DefaultConfig())

	if got := allowedRunes(p); !slices.Equal(got, []rune{'-', '5'}) {
		t.Errorf("allowed = %q, want [- 5]", got)
	}
	if !accepts(p, "5") || !accepts(p, "-5") {
		t.Error("sequence with optional head should accept both forms")
	}
	if accepts(p, "--5") || accepts(p, "-") {
		t.Error("sequence accepted malformed input")
	}
}

func TestComposedCacheKeys(t *testing.T) {
	mk := func() Parser {
		return NewSequence(NewString("ab"), NewUnion(NewString("x"), NewString("y"))).WithConfig(DefaultConfig())
	}
	a := feed(t, mk(), "a")
	b := feed(t, mk(), "a")
	if a.CacheKey() == nil || a.CacheKey() != b.CacheKey() {
		t.Errorf("equivalent composed states should share a cache key: %v != %v", a.CacheKey(), b.CacheKey())
	}
}

func TestDefaultConfigAlphabet(t *testing.T) {
	cfg := DefaultConfig()
	for _, r := range []rune{'a', 'Z', '0', ' ', '\n', '\t'} {
		if !cfg.Alphabet.Contains(r) {
			t.Errorf("default alphabet missing %q", r)
		}
	}
	if cfg.Alphabet.Contains('é') {
		t.Error("default alphabet should be ASCII only")
	}
}
