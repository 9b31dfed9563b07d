package parser

import "github.com/emirpasic/gods/v2/sets/hashset"

// StringParser matches exactly one literal string.
type StringParser struct {
	target []rune
	pos    int
	cfg    *Config
}

// NewString returns a parser for the literal string s.
func NewString(s string) *StringParser {
	return &StringParser{target: []rune(s)}
}

func (p *StringParser) AllowedCharacters() *hashset.Set[rune] {
	if p.pos >= len(p.target) {
		return emptySet
	}
	return hashset.New(p.target[p.pos])
}

func (p *StringParser) Advance(r rune) Parser {
	if p.pos >= len(p.target) || r != p.target[p.pos] {
		return ForceStop{}
	}
	return &StringParser{target: p.target, pos: p.pos + 1, cfg: p.cfg}
}

func (p *StringParser) CanEnd() bool {
	return p.pos >= len(p.target)
}

// CacheKey is the remaining suffix: two literal parsers with the same
// unconsumed text behave identically from here on.
func (p *StringParser) CacheKey() any {
	return "lit:" + string(p.target[p.pos:])
}

func (p *StringParser) ShortcutKey() string { return "" }

func (p *StringParser) WithConfig(cfg *Config) Parser {
	return &StringParser{target: p.target, pos: p.pos, cfg: cfg}
}
