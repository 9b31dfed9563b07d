package jsonschema

import (
	"sync"

	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/tokenfence/tokenfence/parser"
)

// RFC 7159 number shapes.
var (
	numberProto  = parser.MustRegex(`-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?`)
	integerProto = parser.MustRegex(`-?(0|[1-9][0-9]*)`)
)

// newValueParser matches any JSON value. Objects and arrays nest through
// lazyValue, which defers construction so the recursion terminates.
func newValueParser() parser.Parser {
	str, _ := newStringParser(&Schema{Type: "string"})
	return parser.NewUnion(
		str,
		numberProto,
		parser.NewString("true"),
		parser.NewString("false"),
		parser.NewString("null"),
		newAnyListParser(),
		newAnyObjectParser(),
	)
}

// lazyValue returns a parser for any JSON value whose construction is
// deferred until a character arrives. Nested uses inside newValueParser
// would otherwise recurse forever.
func lazyValue() parser.Parser {
	return &lazyParser{build: newValueParser}
}

// lazyParser defers building its underlying parser until first use, then
// delegates everything to it.
type lazyParser struct {
	build func() parser.Parser
	cfg   *parser.Config

	once     sync.Once
	resolved parser.Parser
}

func (p *lazyParser) resolve() parser.Parser {
	p.once.Do(func() {
		built := p.build()
		if p.cfg != nil {
			built = built.WithConfig(p.cfg)
		}
		p.resolved = built
	})
	return p.resolved
}

func (p *lazyParser) AllowedCharacters() *hashset.Set[rune] { return p.resolve().AllowedCharacters() }
func (p *lazyParser) Advance(r rune) parser.Parser          { return p.resolve().Advance(r) }
func (p *lazyParser) CanEnd() bool                          { return p.resolve().CanEnd() }
func (p *lazyParser) CacheKey() any                         { return p.resolve().CacheKey() }
func (p *lazyParser) ShortcutKey() string                   { return p.resolve().ShortcutKey() }

func (p *lazyParser) WithConfig(cfg *parser.Config) parser.Parser {
	return &lazyParser{build: p.build, cfg: cfg}
}
