// Package parser defines the character-level grammar contract consumed by
// the token enforcer, plus the basic parser implementations: literal
// strings, unions, sequences and regular expressions.
//
// A Parser is an immutable value representing how much of the output format
// has been satisfied so far. Advancing it by one character yields a new
// value; the original is never modified. This is what lets the enforcer
// share parser states across beam search branches that diverge and re-merge.
package parser

import (
	"fmt"

	"github.com/emirpasic/gods/v2/sets/hashset"
)

// ShortcutStringFreetext is the one recognized shortcut key. A parser
// reports it when the current state is unconstrained string content inside
// a structured format, letting the enforcer add every token that contains
// no interrupt character in bulk instead of exploring them one character at
// a time.
const ShortcutStringFreetext = "string-freetext"

// DefaultWhitespaceLimit caps runs of consecutive whitespace characters in
// structured formats so the model cannot stall by emitting whitespace
// forever.
const DefaultWhitespaceLimit = 12

// Parser tracks grammar progress one character at a time.
//
// Implementations must be immutable: Advance returns a new Parser and
// leaves the receiver untouched. Advance may only be called with a
// character contained in AllowedCharacters; behavior for other characters
// is implementation-defined.
type Parser interface {
	// AllowedCharacters returns the characters that may legally follow
	// this state. The returned set must not be mutated by the caller.
	AllowedCharacters() *hashset.Set[rune]

	// Advance consumes one allowed character and returns the next state.
	Advance(r rune) Parser

	// CanEnd reports whether the output may legally stop here.
	CanEnd() bool

	// CacheKey returns a comparable value identifying an equivalence
	// class of states: any two states with equal non-nil keys must behave
	// identically for all subsequent input. Returning nil disables
	// cross-path memoization for this state.
	CacheKey() any

	// ShortcutKey returns a bulk-approximation hint for the enforcer, or
	// "" when none applies. See ShortcutStringFreetext.
	ShortcutKey() string

	// WithConfig binds the parser to a session configuration. It is
	// called once, at enforcer construction, before any other method.
	WithConfig(cfg *Config) Parser
}

// Config carries session-wide settings supplied by the enforcer when it is
// constructed: most importantly the set of characters the tokenizer can
// actually produce, which bounds every allowed-character computation.
type Config struct {
	// Alphabet is the set of characters reachable in one step from the
	// vocabulary prefix tree root.
	Alphabet *hashset.Set[rune]

	// WhitespaceLimit caps consecutive whitespace characters in
	// structured formats. Zero means DefaultWhitespaceLimit.
	WhitespaceLimit int
}

// NewConfig returns a Config over the given alphabet with default limits.
func NewConfig(alphabet *hashset.Set[rune]) *Config {
	return &Config{Alphabet: alphabet, WhitespaceLimit: DefaultWhitespaceLimit}
}

// DefaultConfig returns a Config over printable ASCII plus common
// whitespace, for parsers used without an enforcer (mostly tests).
func DefaultConfig() *Config {
	alphabet := hashset.New[rune]('\t', '\n', '\r')
	for r := rune(0x20); r <= 0x7e; r++ {
		alphabet.Add(r)
	}
	return NewConfig(alphabet)
}

func (c *Config) whitespaceLimit() int {
	if c == nil || c.WhitespaceLimit <= 0 {
		return DefaultWhitespaceLimit
	}
	return c.WhitespaceLimit
}

// alphabet returns the configured alphabet, falling back to the default.
func (c *Config) alphabet() *hashset.Set[rune] {
	if c == nil || c.Alphabet == nil {
		return DefaultConfig().Alphabet
	}
	return c.Alphabet
}

var emptySet = hashset.New[rune]()

// ForceStop is the degenerate parser: it allows no characters and permits
// ending. The enforcer substitutes it when a sequence diverges from the
// grammar, which terminates that one sequence without affecting the rest
// of a batch.
type ForceStop struct{}

func (ForceStop) AllowedCharacters() *hashset.Set[rune] { return emptySet }
func (ForceStop) Advance(rune) Parser                   { return ForceStop{} }
func (ForceStop) CanEnd() bool                          { return true }
func (ForceStop) CacheKey() any                         { return "force-stop" }
func (ForceStop) ShortcutKey() string                   { return "" }
func (ForceStop) WithConfig(*Config) Parser             { return ForceStop{} }

// Error is a recognized, user-actionable problem: a malformed pattern, an
// unsupported schema construct, an unsatisfiable constraint. The enforcer
// propagates these unchanged to the caller; any other failure during a
// query is treated as a bug and degrades only the affected sequence.
type Error struct {
	msg string
}

// Errorf formats a recognized error.
func Errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }

// Raise panics with a recognized error. Parser implementations use it to
// signal user-actionable problems from methods that have no error return;
// the enforcer recovers it and hands it to the caller as a normal error.
func Raise(format string, args ...any) {
	panic(Errorf(format, args...))
}
