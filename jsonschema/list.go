package jsonschema

import (
	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/tokenfence/tokenfence/parser"
)

// list parser phases
const (
	listOpen     = iota // expecting '['
	listPreElem         // expecting an element, or ']' when permitted
	listElem            // inside an element, delegated
	listPostElem        // after an element, expecting ',' or ']'
	listDone
)

// listSpec is the immutable, shareable part of a list parser. Elements
// before len(prefix) use the positional prototypes; later elements use
// items. A nil items with a non-empty prefix closes the tuple.
type listSpec struct {
	prefix []parser.Parser
	items  parser.Parser
	min    int
	max    int // 0 = unbounded
}

func (s *listSpec) bind(cfg *parser.Config) *listSpec {
	bound := &listSpec{min: s.min, max: s.max}
	bound.prefix = make([]parser.Parser, len(s.prefix))
	for i, proto := range s.prefix {
		bound.prefix[i] = proto.WithConfig(cfg)
	}
	if s.items != nil {
		bound.items = s.items.WithConfig(cfg)
	}
	return bound
}

// protoFor returns the prototype for element index i, or nil when no
// element may appear there.
func (s *listSpec) protoFor(i int) parser.Parser {
	if i < len(s.prefix) {
		return s.prefix[i]
	}
	return s.items
}

// mayStart reports whether element index i may begin.
func (s *listSpec) mayStart(i int) bool {
	if s.protoFor(i) == nil {
		return false
	}
	return s.max == 0 || i < s.max
}

// listParser matches one JSON array, delegating element content to the
// compiled element parsers and tracking the element count against the
// schema's bounds.
type listParser struct {
	spec       *listSpec
	cfg        *parser.Config
	phase      int
	count      int // completed elements
	inner      parser.Parser
	wsRun      int
	afterComma bool
}

func newListParser(s *Schema) (parser.Parser, error) {
	spec := &listSpec{min: s.MinItems, max: s.MaxItems}
	for _, ps := range s.PrefixItems {
		proto, err := compile(ps)
		if err != nil {
			return nil, err
		}
		spec.prefix = append(spec.prefix, proto)
	}
	switch {
	case s.Items != nil:
		proto, err := compile(s.Items)
		if err != nil {
			return nil, err
		}
		spec.items = proto
	case len(s.PrefixItems) == 0:
		spec.items = lazyValue()
	}
	return &listParser{spec: spec, phase: listOpen}, nil
}

// newAnyListParser matches any JSON array.
func newAnyListParser() parser.Parser {
	return &listParser{spec: &listSpec{items: lazyValue()}, phase: listOpen}
}

func (p *listParser) clone() *listParser {
	q := *p
	return &q
}

func (p *listParser) addWS(set *hashset.Set[rune]) {
	if p.wsRun < wsLimit(p.cfg) {
		set.Add(wsChars...)
	}
}

func (p *listParser) AllowedCharacters() *hashset.Set[rune] {
	set := hashset.New[rune]()
	switch p.phase {
	case listOpen:
		set.Add('[')
	case listPreElem:
		p.addWS(set)
		if p.spec.mayStart(p.count) {
			set.Add(p.spec.protoFor(p.count).AllowedCharacters().Values()...)
		}
		if !p.afterComma && p.count >= p.spec.min {
			set.Add(']')
		}
	case listElem:
		set.Add(p.inner.AllowedCharacters().Values()...)
		if p.inner.CanEnd() {
			p.addWS(set)
			if p.spec.mayStart(p.count + 1) {
				set.Add(',')
			}
			if p.count+1 >= p.spec.min {
				set.Add(']')
			}
		}
	case listPostElem:
		p.addWS(set)
		if p.spec.mayStart(p.count) {
			set.Add(',')
		}
		if p.count >= p.spec.min {
			set.Add(']')
		}
	}
	return set
}

func (p *listParser) Advance(r rune) parser.Parser {
	q := p.clone()
	switch p.phase {
	case listOpen:
		q.phase = listPreElem
		q.wsRun = 0
	case listPreElem:
		switch {
		case isWS(r):
			q.wsRun++
		case r == ']' && !p.afterComma && p.count >= p.spec.min:
			q.phase = listDone
		default:
			proto := p.spec.protoFor(p.count)
			if proto == nil || !proto.AllowedCharacters().Contains(r) {
				return parser.ForceStop{}
			}
			q.inner = proto.Advance(r)
			q.phase = listElem
		}
	case listElem:
		if p.inner.AllowedCharacters().Contains(r) {
			q.inner = p.inner.Advance(r)
			break
		}
		if !p.inner.CanEnd() {
			return parser.ForceStop{}
		}
		q.inner = nil
		q.count = p.count + 1
		switch {
		case isWS(r):
			q.phase = listPostElem
			q.wsRun = 1
		case r == ',':
			q.phase = listPreElem
			q.afterComma = true
			q.wsRun = 0
		case r == ']':
			q.phase = listDone
		default:
			return parser.ForceStop{}
		}
	case listPostElem:
		switch {
		case isWS(r):
			q.wsRun++
		case r == ',':
			q.phase = listPreElem
			q.afterComma = true
			q.wsRun = 0
		case r == ']':
			q.phase = listDone
		}
	case listDone:
		return parser.ForceStop{}
	}
	return q
}

func (p *listParser) CanEnd() bool {
	return p.phase == listDone
}

func (p *listParser) CacheKey() any { return nil }

func (p *listParser) ShortcutKey() string {
	if p.phase == listElem {
		return p.inner.ShortcutKey()
	}
	return ""
}

func (p *listParser) WithConfig(cfg *parser.Config) parser.Parser {
	q := p.clone()
	q.cfg = cfg
	q.spec = p.spec.bind(cfg)
	if p.inner != nil {
		q.inner = p.inner.WithConfig(cfg)
	}
	return q
}
