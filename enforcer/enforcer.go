package enforcer

import (
	"context"
	"encoding/binary"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/tokenfence/tokenfence/internal/logutil"
	"github.com/tokenfence/tokenfence/parser"
)

// DecodeFunc converts a token id sequence to text. It must be
// deterministic: the same sequence always decodes to the same string.
type DecodeFunc func([]int32) (string, error)

// sequenceState is what the enforcer remembers about one distinct
// generated-token-sequence: the decoded text, the parser state reached
// after consuming it, and the allowed-token set once computed.
type sequenceState struct {
	text    string
	parser  parser.Parser
	allowed []int32 // nil until computed
}

// TokenEnforcer answers, for a token sequence generated so far, which
// token ids may be emitted next without leaving the grammar. One enforcer
// serves one generation request; it must not be reused across requests
// with different grammars.
//
// Lookup is keyed by sequence value, never by batch or beam index, so
// beam search and batching work without the host telling us how branches
// were reordered or pruned between steps.
type TokenEnforcer struct {
	root   parser.Parser
	tree   *PrefixTree
	decode DecodeFunc
	eos    int32
	logger *slog.Logger

	// mu is nil unless WithLocking was given; the enforcer is otherwise
	// single-threaded by design.
	mu *sync.Mutex

	states       map[string]*sequenceState
	allowedCache map[any][]int32

	// rootText is the decoded prompt, recorded on the first query so
	// diagnostics can report only the generated suffix.
	rootText    string
	haveRoot    bool
	treeOptions []TreeOption
}

// Option configures a TokenEnforcer.
type Option func(*TokenEnforcer)

// WithLocking makes AllowedTokens safe to call concurrently from multiple
// goroutines driving independent sequences of the same request.
func WithLocking() Option {
	return func(e *TokenEnforcer) {
		e.mu = &sync.Mutex{}
	}
}

// WithLogger sets the logger used for divergence and failure diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *TokenEnforcer) {
		e.logger = logger
	}
}

// WithTreeOptions forwards options to the prefix tree built for this
// enforcer.
func WithTreeOptions(opts ...TreeOption) Option {
	return func(e *TokenEnforcer) {
		e.treeOptions = opts
	}
}

// New builds an enforcer for a vocabulary and a root parser. tokens must
// cover the regular (non-special) vocabulary; eos is the end-of-sequence
// id the host recognizes. The root parser is configured here with the
// vocabulary's character alphabet.
func New(tokens []Token, root parser.Parser, decode DecodeFunc, eos int32, opts ...Option) *TokenEnforcer {
	e := &TokenEnforcer{
		decode:       decode,
		eos:          eos,
		logger:       slog.Default(),
		states:       make(map[string]*sequenceState),
		allowedCache: make(map[any][]int32),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tree = NewPrefixTree(tokens, e.treeOptions...)
	e.root = root.WithConfig(parser.NewConfig(e.tree.Alphabet()))
	return e
}

// signature packs a token sequence into a map key.
func signature(seq []int32) string {
	buf := make([]byte, len(seq)*4)
	for i, id := range seq {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(id))
	}
	return string(buf)
}

// AllowedTokens returns the token ids that may follow the given sequence.
// The sequence must be either the first one queried on this enforcer (the
// prompt) or a one-token extension of a previously queried sequence; the
// predecessor may have been queried by any batch or beam slot.
//
// The returned slice is shared with the enforcer's caches and must not be
// modified.
func (e *TokenEnforcer) AllowedTokens(sequence []int32) ([]int32, error) {
	if e.mu != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	key := signature(sequence)
	if st, ok := e.states[key]; ok && st.allowed != nil {
		// Re-scoring and speculative decoding repeat queries.
		return st.allowed, nil
	}

	var st *sequenceState
	prev, ok := e.states[signature(sequence[:max(len(sequence)-1, 0)])]
	if !ok || !e.haveRoot {
		// First query of the request: the whole sequence is prompt.
		text, err := e.decode(sequence)
		if err != nil {
			e.logger.Error("prompt decode failed, forcing stop", "error", err)
			st = &sequenceState{parser: parser.ForceStop{}}
		} else {
			st = &sequenceState{text: text, parser: e.root}
		}
		e.rootText = st.text
		e.haveRoot = true
	} else {
		st = e.advanceState(prev, sequence)
	}
	e.states[key] = st

	if err := e.computeAllowed(st); err != nil {
		return nil, err
	}
	return st.allowed, nil
}

// advanceState derives the state for a sequence from its predecessor's,
// walking the parser across the newly decoded characters. A character the
// parser does not allow means this branch already finished logically (a
// batch peer kept it alive); the branch is switched to force-stop rather
// than failing the whole request.
func (e *TokenEnforcer) advanceState(prev *sequenceState, sequence []int32) *sequenceState {
	text, err := e.decode(sequence)
	if err != nil {
		e.logger.Error("decode failed, forcing stop", "error", err)
		return &sequenceState{text: prev.text, parser: parser.ForceStop{}}
	}
	if !strings.HasPrefix(text, prev.text) {
		// Byte-merging tokenizers can decode an extension to text that
		// does not extend the prefix's text (partial UTF-8 runes, for
		// example). There are no new characters to judge, so this
		// sequence gives up rather than guessing.
		e.logger.Error("decoded text does not extend its prefix, forcing stop",
			"prefix", prev.text, "text", text)
		return &sequenceState{text: text, parser: parser.ForceStop{}}
	}

	st := &sequenceState{text: text, parser: prev.parser}
	for _, r := range text[len(prev.text):] {
		if st.parser.AllowedCharacters().Contains(r) {
			st.parser = st.parser.Advance(r)
		} else {
			e.logger.Debug("character diverged from grammar, forcing stop", "char", string(r))
			st.parser = parser.ForceStop{}
		}
	}
	return st
}

// computeAllowed fills st.allowed. Recognized grammar errors propagate;
// anything else degrades this one sequence to end-of-sequence only.
func (e *TokenEnforcer) computeAllowed(st *sequenceState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(*parser.Error); ok {
				// The grammar detected a condition the user can
				// fix; hand it to them untouched.
				err = perr
				return
			}
			e.logger.Error("allowed-token computation failed, forcing stop",
				"panic", r,
				"suffix", st.text[min(len(e.rootText), len(st.text)):])
			st.allowed = []int32{e.eos}
		}
	}()

	if key := st.parser.CacheKey(); key != nil {
		if cached, ok := e.allowedCache[key]; ok {
			st.allowed = cached
			return nil
		}
	}

	var allowed []int32
	e.collect(st.parser, e.tree.root, &allowed, st.parser.ShortcutKey())
	if st.parser.CanEnd() {
		allowed = append(allowed, e.eos)
	}
	if len(allowed) == 0 {
		// The grammar permits characters the vocabulary cannot spell
		// (or vice versa). This is a configuration mismatch, not a
		// user error; give up on this sequence only.
		e.logger.Error("no token satisfies the grammar, forcing stop",
			"suffix", st.text[min(len(e.rootText), len(st.text)):])
		st.allowed = []int32{e.eos}
		return nil
	}

	slices.Sort(allowed)
	st.allowed = allowed
	if key := st.parser.CacheKey(); key != nil {
		e.allowedCache[key] = allowed
	}
	if e.logger.Enabled(context.Background(), logutil.LevelTrace) {
		e.logger.Log(context.Background(), logutil.LevelTrace, "allowed tokens computed",
			"count", len(allowed),
			"suffix", st.text[min(len(e.rootText), len(st.text)):])
	}
	return nil
}

// collect walks the prefix tree and the parser in lockstep, exploring
// only characters both sides allow. Every node passed on the way
// contributes its token ids: reaching a node means its whole decoded
// string is a legal continuation.
func (e *TokenEnforcer) collect(p parser.Parser, node *treeNode, out *[]int32, shortcut string) {
	*out = append(*out, node.tokens...)
	allowed := p.AllowedCharacters()

	if shortcut == parser.ShortcutStringFreetext {
		// Inside unconstrained string content every token free of
		// interrupt characters is legal as-is; only paths that could
		// close or escape the string need real exploration.
		*out = append(*out, e.tree.freetext...)
		for r, child := range node.children {
			if e.tree.interrupts.Contains(r) && allowed.Contains(r) {
				e.collect(p.Advance(r), child, out, "")
			}
		}
		return
	}

	for r, child := range node.children {
		if allowed.Contains(r) {
			e.collect(p.Advance(r), child, out, "")
		}
	}
}
