package parser

import (
	"fmt"
	"slices"
	"strings"

	"github.com/emirpasic/gods/v2/sets/hashset"
)

// UnionParser accepts whatever any of its alternatives accepts.
type UnionParser struct {
	parsers []Parser
}

// NewUnion returns a parser accepting the union of the given alternatives.
func NewUnion(parsers ...Parser) *UnionParser {
	return &UnionParser{parsers: parsers}
}

func (p *UnionParser) AllowedCharacters() *hashset.Set[rune] {
	set := hashset.New[rune]()
	for _, sub := range p.parsers {
		set.Add(sub.AllowedCharacters().Values()...)
	}
	return set
}

func (p *UnionParser) Advance(r rune) Parser {
	var next []Parser
	for _, sub := range p.parsers {
		if sub.AllowedCharacters().Contains(r) {
			next = append(next, sub.Advance(r))
		}
	}
	switch len(next) {
	case 0:
		return ForceStop{}
	case 1:
		return next[0]
	default:
		return &UnionParser{parsers: next}
	}
}

func (p *UnionParser) CanEnd() bool {
	for _, sub := range p.parsers {
		if sub.CanEnd() {
			return true
		}
	}
	return false
}

// CacheKey composes the alternatives' keys, order-independently. Nil if
// any alternative opts out.
func (p *UnionParser) CacheKey() any {
	keys := make([]string, 0, len(p.parsers))
	for _, sub := range p.parsers {
		k := sub.CacheKey()
		if k == nil {
			return nil
		}
		keys = append(keys, fmt.Sprint(k))
	}
	slices.Sort(keys)
	return "union(" + strings.Join(keys, "|") + ")"
}

func (p *UnionParser) ShortcutKey() string { return "" }

func (p *UnionParser) WithConfig(cfg *Config) Parser {
	next := make([]Parser, len(p.parsers))
	for i, sub := range p.parsers {
		next[i] = sub.WithConfig(cfg)
	}
	return &UnionParser{parsers: next}
}

// SequenceParser accepts the concatenation of its parts in order. A part
// that can end is transparent: characters may come from it or from what
// follows it, and ambiguity is resolved by tracking both continuations.
type SequenceParser struct {
	parsers []Parser
}

// NewSequence returns a parser accepting the given parts in order.
func NewSequence(parsers ...Parser) *SequenceParser {
	return &SequenceParser{parsers: parsers}
}

func (p *SequenceParser) AllowedCharacters() *hashset.Set[rune] {
	set := hashset.New[rune]()
	for _, sub := range p.parsers {
		set.Add(sub.AllowedCharacters().Values()...)
		if !sub.CanEnd() {
			break
		}
	}
	return set
}

func (p *SequenceParser) Advance(r rune) Parser {
	var alts []Parser
	for i, sub := range p.parsers {
		if sub.AllowedCharacters().Contains(r) {
			adv := sub.Advance(r)
			if rest := p.parsers[i+1:]; len(rest) == 0 {
				alts = append(alts, adv)
			} else {
				chain := append([]Parser{adv}, rest...)
				alts = append(alts, &SequenceParser{parsers: chain})
			}
		}
		if !sub.CanEnd() {
			break
		}
	}
	switch len(alts) {
	case 0:
		return ForceStop{}
	case 1:
		return alts[0]
	default:
		return &UnionParser{parsers: alts}
	}
}

func (p *SequenceParser) CanEnd() bool {
	for _, sub := range p.parsers {
		if !sub.CanEnd() {
			return false
		}
	}
	return true
}

func (p *SequenceParser) CacheKey() any {
	keys := make([]string, 0, len(p.parsers))
	for _, sub := range p.parsers {
		k := sub.CacheKey()
		if k == nil {
			return nil
		}
		keys = append(keys, fmt.Sprint(k))
	}
	return "seq(" + strings.Join(keys, ",") + ")"
}

// ShortcutKey forwards the head's shortcut while the head is the only part
// characters can come from.
func (p *SequenceParser) ShortcutKey() string {
	if len(p.parsers) == 0 || p.parsers[0].CanEnd() {
		return ""
	}
	return p.parsers[0].ShortcutKey()
}

func (p *SequenceParser) WithConfig(cfg *Config) Parser {
	next := make([]Parser, len(p.parsers))
	for i, sub := range p.parsers {
		next[i] = sub.WithConfig(cfg)
	}
	return &SequenceParser{parsers: next}
}
