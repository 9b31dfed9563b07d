package jsonschema

import (
	"slices"

	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/tokenfence/tokenfence/internal/orderedmap"
	"github.com/tokenfence/tokenfence/parser"
)

// NewParser compiles a schema to a character-level parser that admits
// exactly the JSON documents conforming to it. Unsupported schema
// constructs are recognized errors.
func NewParser(s *Schema) (parser.Parser, error) {
	if s == nil {
		return newValueParser(), nil
	}
	return compile(s)
}

func compile(s *Schema) (parser.Parser, error) {
	if len(s.Enum) > 0 {
		return enumParser(s), nil
	}
	switch typ := s.EffectiveType(); typ {
	case "object":
		return newObjectParser(s)
	case "array":
		return newListParser(s)
	case "string":
		return newStringParser(s)
	case "number":
		return numberProto, nil
	case "integer":
		return integerProto, nil
	case "boolean":
		return parser.NewUnion(parser.NewString("true"), parser.NewString("false")), nil
	case "null":
		return parser.NewString("null"), nil
	case "value":
		return lazyValue(), nil
	default:
		return nil, parser.Errorf("%s: unsupported type %q", s.Name, typ)
	}
}

// enumParser admits the enum values verbatim, as they appear in the schema
// text.
func enumParser(s *Schema) parser.Parser {
	alts := make([]parser.Parser, len(s.Enum))
	for i, raw := range s.Enum {
		alts[i] = parser.NewString(string(raw))
	}
	return parser.NewUnion(alts...)
}

var wsChars = []rune{' ', '\t', '\n', '\r'}

func isWS(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

var defaultAlphabet = parser.DefaultConfig().Alphabet

func alphabet(cfg *parser.Config) *hashset.Set[rune] {
	if cfg == nil || cfg.Alphabet == nil {
		return defaultAlphabet
	}
	return cfg.Alphabet
}

func wsLimit(cfg *parser.Config) int {
	if cfg == nil || cfg.WhitespaceLimit <= 0 {
		return parser.DefaultWhitespaceLimit
	}
	return cfg.WhitespaceLimit
}

// object parser phases
const (
	objOpen      = iota // expecting '{'
	objPreKey           // expecting a key, or '}' when nothing is pending
	objKey              // inside a key (opening quote consumed)
	objPostKey          // expecting ':'
	objPreValue         // expecting the value's first character
	objValue            // inside a value, delegated
	objPostValue        // after a value, expecting ',' or '}'
	objDone
)

// propSpec is one declared property: the compiled prototype of its value
// parser and whether it must be present.
type propSpec struct {
	proto    parser.Parser
	required bool
}

// objectSpec is the immutable, shareable part of an object parser. With
// anyKeys set, keys are arbitrary strings and every value uses valueProto;
// otherwise keys must name one of props.
type objectSpec struct {
	props      *orderedmap.Map[string, propSpec]
	anyKeys    bool
	valueProto parser.Parser
}

func (s *objectSpec) bind(cfg *parser.Config) *objectSpec {
	bound := &objectSpec{
		props:   orderedmap.New[string, propSpec](),
		anyKeys: s.anyKeys,
	}
	for name, ps := range s.props.All() {
		bound.props.Set(name, propSpec{proto: ps.proto.WithConfig(cfg), required: ps.required})
	}
	if s.valueProto != nil {
		bound.valueProto = s.valueProto.WithConfig(cfg)
	}
	return bound
}

// objectParser matches one JSON object against declared properties. Keys
// may appear in any order; the object can close once every required
// property has been seen. Without an explicit "required" list, every
// declared property is required.
type objectParser struct {
	spec       *objectSpec
	cfg        *parser.Config
	phase      int
	taken      map[string]bool
	key        []rune
	pending    parser.Parser // value prototype chosen by the completed key
	inner      parser.Parser // delegated key or value parser
	wsRun      int
	afterComma bool
}

func newObjectParser(s *Schema) (parser.Parser, error) {
	spec := &objectSpec{props: orderedmap.New[string, propSpec]()}
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	for _, prop := range s.Properties {
		proto, err := compile(prop)
		if err != nil {
			return nil, err
		}
		// An absent "required" list makes every declared property
		// required; an explicit empty list makes them all optional.
		spec.props.Set(prop.Name, propSpec{
			proto:    proto,
			required: s.Required == nil || required[prop.Name],
		})
	}
	return &objectParser{spec: spec, phase: objOpen}, nil
}

// newAnyObjectParser matches any JSON object: arbitrary keys, any values.
func newAnyObjectParser() parser.Parser {
	return &objectParser{
		spec:  &objectSpec{props: orderedmap.New[string, propSpec](), anyKeys: true, valueProto: lazyValue()},
		phase: objOpen,
	}
}

func (p *objectParser) clone() *objectParser {
	q := *p
	return &q
}

// moreKeys reports whether another key could still appear.
func (p *objectParser) moreKeys() bool {
	if p.spec.anyKeys {
		return true
	}
	for name := range p.spec.props.All() {
		if !p.taken[name] {
			return true
		}
	}
	return false
}

// requiredLeft reports whether a required property has not been seen yet.
func (p *objectParser) requiredLeft() bool {
	if p.spec.anyKeys {
		return false
	}
	for name, ps := range p.spec.props.All() {
		if ps.required && !p.taken[name] {
			return true
		}
	}
	return false
}

func (p *objectParser) addWS(set *hashset.Set[rune]) {
	if p.wsRun < wsLimit(p.cfg) {
		set.Add(wsChars...)
	}
}

func (p *objectParser) AllowedCharacters() *hashset.Set[rune] {
	set := hashset.New[rune]()
	switch p.phase {
	case objOpen:
		set.Add('{')
	case objPreKey:
		p.addWS(set)
		if p.moreKeys() {
			set.Add('"')
		}
		if !p.afterComma && !p.requiredLeft() {
			set.Add('}')
		}
	case objKey:
		if p.spec.anyKeys {
			set.Add(p.inner.AllowedCharacters().Values()...)
			break
		}
		for name := range p.spec.props.All() {
			if p.taken[name] {
				continue
			}
			runes := []rune(name)
			if !slices.Equal(runes[:min(len(runes), len(p.key))], p.key) {
				continue
			}
			if len(runes) == len(p.key) {
				set.Add('"')
			} else {
				set.Add(runes[len(p.key)])
			}
		}
	case objPostKey:
		p.addWS(set)
		set.Add(':')
	case objPreValue:
		p.addWS(set)
		set.Add(p.pending.AllowedCharacters().Values()...)
	case objValue:
		set.Add(p.inner.AllowedCharacters().Values()...)
		if p.inner.CanEnd() {
			p.addWS(set)
			if p.moreKeys() {
				set.Add(',')
			}
			if !p.requiredLeft() {
				set.Add('}')
			}
		}
	case objPostValue:
		p.addWS(set)
		if p.moreKeys() {
			set.Add(',')
		}
		if !p.requiredLeft() {
			set.Add('}')
		}
	}
	return set
}

func (p *objectParser) Advance(r rune) parser.Parser {
	q := p.clone()
	switch p.phase {
	case objOpen:
		q.phase = objPreKey
		q.wsRun = 0
	case objPreKey:
		switch {
		case isWS(r):
			q.wsRun++
		case r == '"':
			q.phase = objKey
			q.key = nil
			if p.spec.anyKeys {
				q.inner = bodyStart().WithConfig(p.cfg)
			}
		case r == '}':
			q.phase = objDone
		}
	case objKey:
		if p.spec.anyKeys {
			q.inner = p.inner.Advance(r)
			if q.inner.CanEnd() {
				q.phase = objPostKey
				q.pending = p.spec.valueProto
				q.inner = nil
				q.wsRun = 0
			}
			break
		}
		if r == '"' {
			name := string(p.key)
			ps, ok := p.spec.props.Get(name)
			if !ok || p.taken[name] {
				return parser.ForceStop{}
			}
			taken := make(map[string]bool, len(p.taken)+1)
			for k := range p.taken {
				taken[k] = true
			}
			taken[name] = true
			q.taken = taken
			q.pending = ps.proto
			q.phase = objPostKey
			q.wsRun = 0
			q.key = nil
			break
		}
		q.key = append(slices.Clone(p.key), r)
	case objPostKey:
		switch {
		case isWS(r):
			q.wsRun++
		case r == ':':
			q.phase = objPreValue
			q.wsRun = 0
		}
	case objPreValue:
		if isWS(r) {
			q.wsRun++
			break
		}
		if !p.pending.AllowedCharacters().Contains(r) {
			return parser.ForceStop{}
		}
		q.inner = p.pending.Advance(r)
		q.pending = nil
		q.phase = objValue
	case objValue:
		if p.inner.AllowedCharacters().Contains(r) {
			q.inner = p.inner.Advance(r)
			break
		}
		if !p.inner.CanEnd() {
			return parser.ForceStop{}
		}
		q.inner = nil
		switch {
		case isWS(r):
			q.phase = objPostValue
			q.wsRun = 1
		case r == ',':
			q.phase = objPreKey
			q.afterComma = true
			q.wsRun = 0
		case r == '}':
			q.phase = objDone
		default:
			return parser.ForceStop{}
		}
	case objPostValue:
		switch {
		case isWS(r):
			q.wsRun++
		case r == ',':
			q.phase = objPreKey
			q.afterComma = true
			q.wsRun = 0
		case r == '}':
			q.phase = objDone
		}
	case objDone:
		return parser.ForceStop{}
	}
	return q
}

func (p *objectParser) CanEnd() bool {
	return p.phase == objDone
}

// CacheKey is nil: object progress depends on which keys were consumed,
// which rarely repeats across branches. The free-text shortcut still
// applies inside key and value strings.
func (p *objectParser) CacheKey() any { return nil }

func (p *objectParser) ShortcutKey() string {
	switch p.phase {
	case objKey:
		if p.spec.anyKeys {
			return p.inner.ShortcutKey()
		}
	case objValue:
		return p.inner.ShortcutKey()
	}
	return ""
}

func (p *objectParser) WithConfig(cfg *parser.Config) parser.Parser {
	q := p.clone()
	q.cfg = cfg
	q.spec = p.spec.bind(cfg)
	if p.pending != nil {
		q.pending = p.pending.WithConfig(cfg)
	}
	if p.inner != nil {
		q.inner = p.inner.WithConfig(cfg)
	}
	return q
}
