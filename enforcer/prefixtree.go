// Package enforcer filters a model's vocabulary at every decoding step so
// that the generated text always conforms to a character-level grammar.
// The host decoding loop asks, once per step per sequence, which token ids
// may come next; the answer is the intersection of what the vocabulary can
// spell and what the grammar still permits.
package enforcer

import (
	"github.com/emirpasic/gods/v2/sets/hashset"
)

// Token pairs a vocabulary entry's id with its decoded string, including
// any leading or trailing whitespace the tokenizer encodes.
type Token struct {
	ID    int32
	Value string
}

// treeNode is one prefix tree node. tokens holds the ids whose decoded
// string is exactly the path from the root; distinct ids may decode to the
// same string.
type treeNode struct {
	children map[rune]*treeNode
	tokens   []int32
}

// PrefixTree indexes a vocabulary by the characters of each token's
// decoded string. Built once, immutable afterwards, and safely shared
// across sessions.
type PrefixTree struct {
	root       *treeNode
	alphabet   *hashset.Set[rune]
	interrupts *hashset.Set[rune]

	// freetext holds ids of tokens containing no interrupt character.
	// Inside unconstrained string content they are all legal at once.
	freetext []int32
}

// TreeOption configures prefix tree construction.
type TreeOption func(*PrefixTree)

// WithInterrupts sets the characters that interrupt free text inside a
// string. The default is the closing quote and the escape backslash; a
// grammar whose strings can be cut short by other structural characters
// needs them listed here too.
func WithInterrupts(runes ...rune) TreeOption {
	return func(t *PrefixTree) {
		t.interrupts = hashset.New(runes...)
	}
}

// NewPrefixTree builds the tree for a vocabulary.
func NewPrefixTree(tokens []Token, opts ...TreeOption) *PrefixTree {
	t := &PrefixTree{
		root:       &treeNode{children: make(map[rune]*treeNode)},
		alphabet:   hashset.New[rune](),
		interrupts: hashset.New('"', '\\'),
	}
	for _, opt := range opts {
		opt(t)
	}

	interrupting := func(s string) bool {
		for _, r := range s {
			if t.interrupts.Contains(r) {
				return true
			}
		}
		return false
	}

	for _, tok := range tokens {
		node := t.root
		for _, r := range tok.Value {
			child, ok := node.children[r]
			if !ok {
				child = &treeNode{children: make(map[rune]*treeNode)}
				node.children[r] = child
			}
			node = child
		}
		if node != t.root {
			node.tokens = append(node.tokens, tok.ID)
		}
		if !interrupting(tok.Value) {
			t.freetext = append(t.freetext, tok.ID)
		}
	}

	for r := range t.root.children {
		t.alphabet.Add(r)
	}
	return t
}

// Alphabet returns the characters the vocabulary can produce, as seen one
// step from the root.
func (t *PrefixTree) Alphabet() *hashset.Set[rune] {
	return t.alphabet
}

// lookup descends the tree along s, returning nil when s spells no token
// prefix.
func (t *PrefixTree) lookup(s string) *treeNode {
	node := t.root
	for _, r := range s {
		node = node.children[r]
		if node == nil {
			return nil
		}
	}
	return node
}
