package jsonschema

import (
	"fmt"

	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/tokenfence/tokenfence/parser"
)

// string parser phases
const (
	strQuote   = iota // expecting the opening quote
	strContent        // inside the string body
	strEscape         // after a backslash
	strUnicode        // inside a \uXXXX escape
	strDone           // closing quote consumed
)

// stringParser matches one JSON string, including both quotes. Unescaped
// content, the standard escapes and \uXXXX are supported. An unconstrained
// body reports the free-text shortcut so the enforcer can admit most of the
// vocabulary in bulk.
type stringParser struct {
	phase   int
	length  int // body characters consumed so far
	hexLeft int
	minLen  int
	maxLen  int           // 0 = unbounded
	pattern parser.Parser // non-nil when the schema constrains the body
	cfg     *parser.Config
}

func newStringParser(s *Schema) (parser.Parser, error) {
	p := &stringParser{phase: strQuote, minLen: s.MinLength, maxLen: s.MaxLength}
	if s.Pattern != "" {
		rp, err := parser.NewRegex(s.Pattern)
		if err != nil {
			return nil, err
		}
		p.pattern = rp
	}
	return p, nil
}

// bodyStart returns a parser already inside the string body, used for
// object keys where the opening quote is consumed by the object parser.
func bodyStart() *stringParser {
	return &stringParser{phase: strContent}
}

func (p *stringParser) clone() *stringParser {
	q := *p
	return &q
}

// unconstrained reports whether any body of any length is acceptable.
func (p *stringParser) unconstrained() bool {
	return p.pattern == nil && p.minLen == 0 && p.maxLen == 0
}

func (p *stringParser) mayGrow() bool {
	return p.maxLen == 0 || p.length < p.maxLen
}

func (p *stringParser) mayClose() bool {
	if p.length < p.minLen {
		return false
	}
	if p.pattern != nil && !p.pattern.CanEnd() {
		return false
	}
	return true
}

var escapeChars = []rune{'"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u'}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (p *stringParser) AllowedCharacters() *hashset.Set[rune] {
	set := hashset.New[rune]()
	switch p.phase {
	case strQuote:
		set.Add('"')
	case strContent:
		if p.mayGrow() {
			if p.pattern != nil {
				for _, r := range p.pattern.AllowedCharacters().Values() {
					if r != '"' && r != '\\' && r >= 0x20 {
						set.Add(r)
					}
				}
			} else {
				for _, r := range alphabet(p.cfg).Values() {
					if r != '"' && r != '\\' && r >= 0x20 {
						set.Add(r)
					}
				}
				set.Add('\\')
			}
		}
		if p.mayClose() {
			set.Add('"')
		}
	case strEscape:
		set.Add(escapeChars...)
	case strUnicode:
		for r := rune('0'); r <= '9'; r++ {
			set.Add(r)
		}
		for r := rune('a'); r <= 'f'; r++ {
			set.Add(r, r-'a'+'A')
		}
	}
	return set
}

func (p *stringParser) Advance(r rune) parser.Parser {
	q := p.clone()
	switch p.phase {
	case strQuote:
		q.phase = strContent
	case strContent:
		switch {
		case r == '"' && p.mayClose():
			q.phase = strDone
		case r == '\\' && p.pattern == nil:
			q.phase = strEscape
		default:
			q.length++
			if p.pattern != nil {
				q.pattern = p.pattern.Advance(r)
			}
		}
	case strEscape:
		if r == 'u' {
			q.phase = strUnicode
			q.hexLeft = 4
		} else {
			q.phase = strContent
			q.length++
		}
	case strUnicode:
		if !isHex(r) {
			return parser.ForceStop{}
		}
		q.hexLeft--
		if q.hexLeft == 0 {
			q.phase = strContent
			q.length++
		}
	case strDone:
		return parser.ForceStop{}
	}
	return q
}

func (p *stringParser) CanEnd() bool {
	return p.phase == strDone
}

func (p *stringParser) CacheKey() any {
	if p.unconstrained() {
		// Body position is irrelevant when nothing bounds the body, so
		// all content states collapse into one equivalence class.
		switch p.phase {
		case strQuote:
			return "jsonstr:open"
		case strContent:
			return "jsonstr:body"
		case strEscape:
			return "jsonstr:esc"
		case strUnicode:
			return fmt.Sprintf("jsonstr:hex%d", p.hexLeft)
		default:
			return "jsonstr:done"
		}
	}
	var patKey any = ""
	if p.pattern != nil {
		patKey = p.pattern.CacheKey()
		if patKey == nil {
			return nil
		}
	}
	return fmt.Sprintf("jsonstr:%d:%d:%d:%d:%d:%v", p.phase, p.length, p.hexLeft, p.minLen, p.maxLen, patKey)
}

func (p *stringParser) ShortcutKey() string {
	if p.phase == strContent && p.unconstrained() {
		return parser.ShortcutStringFreetext
	}
	return ""
}

func (p *stringParser) WithConfig(cfg *parser.Config) parser.Parser {
	q := p.clone()
	q.cfg = cfg
	if p.pattern != nil {
		q.pattern = p.pattern.WithConfig(cfg)
	}
	return q
}
