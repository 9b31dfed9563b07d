package parser

import (
	"encoding/binary"
	"fmt"
	"regexp/syntax"
	"slices"
	"sync"

	"github.com/emirpasic/gods/v2/sets/hashset"
)

// RegexParser matches strings accepted by a regular expression, one
// character at a time. The pattern is compiled once into an NFA program
// (regexp/syntax); a parser state is the set of program counters the NFA
// could be in after the characters consumed so far.
//
// Matching is anchored at both ends: the full output must match the
// pattern. Zero-width assertions (^, $, \b) are treated as no-ops.
type RegexParser struct {
	program *regexProgram
	states  []uint32
	cfg     *Config
}

// regexProgram is the compiled pattern, shared by every state derived from
// the same root parser. It memoizes allowed-character sets per state since
// they are expensive to recompute and states repeat constantly.
type regexProgram struct {
	pattern string
	prog    *syntax.Prog

	mu      sync.Mutex
	allowed map[string]*hashset.Set[rune]
}

// NewRegex compiles pattern and returns its start state. A malformed
// pattern is a recognized error.
func NewRegex(pattern string) (*RegexParser, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, Errorf("invalid regex %q: %v", pattern, err)
	}
	prog, err := syntax.Compile(re.Simplify())
	if err != nil {
		return nil, Errorf("compile regex %q: %v", pattern, err)
	}
	program := &regexProgram{
		pattern: pattern,
		prog:    prog,
		allowed: make(map[string]*hashset.Set[rune]),
	}
	return &RegexParser{
		program: program,
		states:  program.closure(uint32(prog.Start)),
	}, nil
}

// MustRegex is like NewRegex but panics on a malformed pattern. For
// package-level patterns known to be valid.
func MustRegex(pattern string) *RegexParser {
	p, err := NewRegex(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// closure expands a set of program counters across instructions that
// consume no input, keeping only those that consume a rune or match.
func (g *regexProgram) closure(pcs ...uint32) []uint32 {
	seen := make(map[uint32]bool)
	var keep []uint32
	stack := slices.Clone(pcs)
	for len(stack) > 0 {
		pc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[pc] {
			continue
		}
		seen[pc] = true
		inst := &g.prog.Inst[pc]
		switch inst.Op {
		case syntax.InstAlt, syntax.InstAltMatch:
			stack = append(stack, inst.Out, inst.Arg)
		case syntax.InstCapture, syntax.InstNop, syntax.InstEmptyWidth:
			stack = append(stack, inst.Out)
		case syntax.InstRune, syntax.InstRune1, syntax.InstRuneAny, syntax.InstRuneAnyNotNL, syntax.InstMatch:
			keep = append(keep, pc)
		case syntax.InstFail:
		}
	}
	slices.Sort(keep)
	return slices.Compact(keep)
}

// step advances every thread over r, returning the resulting state set.
func (g *regexProgram) step(states []uint32, r rune) []uint32 {
	var next []uint32
	for _, pc := range states {
		inst := &g.prog.Inst[pc]
		var ok bool
		switch inst.Op {
		case syntax.InstRune:
			ok = inst.MatchRune(r)
		case syntax.InstRune1:
			ok = len(inst.Rune) > 0 && inst.Rune[0] == r
		case syntax.InstRuneAny:
			ok = true
		case syntax.InstRuneAnyNotNL:
			ok = r != '\n'
		}
		if ok {
			next = append(next, inst.Out)
		}
	}
	if next == nil {
		return nil
	}
	return g.closure(next...)
}

func stateSignature(states []uint32) string {
	buf := make([]byte, len(states)*4)
	for i, pc := range states {
		binary.LittleEndian.PutUint32(buf[i*4:], pc)
	}
	return string(buf)
}

func (p *RegexParser) AllowedCharacters() *hashset.Set[rune] {
	g := p.program
	key := fmt.Sprintf("%p:%s", p.cfg, stateSignature(p.states))

	g.mu.Lock()
	cached, ok := g.allowed[key]
	g.mu.Unlock()
	if ok {
		return cached
	}

	set := hashset.New[rune]()
	for _, r := range p.cfg.alphabet().Values() {
		if len(g.step(p.states, r)) > 0 {
			set.Add(r)
		}
	}

	g.mu.Lock()
	g.allowed[key] = set
	g.mu.Unlock()
	return set
}

func (p *RegexParser) Advance(r rune) Parser {
	next := p.program.step(p.states, r)
	if len(next) == 0 {
		return ForceStop{}
	}
	return &RegexParser{program: p.program, states: next, cfg: p.cfg}
}

func (p *RegexParser) CanEnd() bool {
	for _, pc := range p.states {
		if p.program.prog.Inst[pc].Op == syntax.InstMatch {
			return true
		}
	}
	return false
}

func (p *RegexParser) CacheKey() any {
	return "re:" + p.program.pattern + ":" + stateSignature(p.states)
}

func (p *RegexParser) ShortcutKey() string { return "" }

func (p *RegexParser) WithConfig(cfg *Config) Parser {
	return &RegexParser{program: p.program, states: p.states, cfg: cfg}
}
