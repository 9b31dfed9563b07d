package enforcer

import (
	"testing"

	"github.com/tokenfence/tokenfence/jsonschema"
	"github.com/tokenfence/tokenfence/parser"
)

// benchVocab resembles a tokenizer vocabulary in miniature: single
// characters plus common merged fragments.
func benchVocab() []Token {
	var tokens []Token
	id := int32(1)
	add := func(s string) {
		tokens = append(tokens, Token{ID: id, Value: s})
		id++
	}
	for r := rune(0x20); r < 0x7f; r++ {
		add(string(r))
	}
	for _, s := range []string{
		`{"`, `"}`, `":`, `":"`, `","`, `approved`, `count`, `name`,
		`true`, `false`, `null`, `ing`, `tion`, `the`, ` the`, `00`, `123`,
	} {
		add(s)
	}
	return tokens
}

func BenchmarkAllowedTokens(b *testing.B) {
	root, err := jsonschema.NewParser(nil)
	if err != nil {
		b.Fatal(err)
	}
	vocab := benchVocab()
	e := New(vocab, root, concatDecoder(vocab), 0)

	// One query per distinct sequence, as a decoding loop would issue.
	seq := []int32{}
	if _, err := e.AllowedTokens(seq); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for b.Loop() {
		b.StopTimer()
		e := New(vocab, root, concatDecoder(vocab), 0)
		b.StartTimer()
		if _, err := e.AllowedTokens([]int32{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAllowedTokensFreetext(b *testing.B) {
	root, err := jsonschema.NewParser(nil)
	if err != nil {
		b.Fatal(err)
	}
	vocab := benchVocab()
	e := New(vocab, root, concatDecoder(vocab), 0)

	// Park a sequence inside unconstrained string content, where the
	// free-text shortcut carries the step.
	var seq []int32
	for _, s := range []string{`{`, `"`, `k`, `"`, `:`, `"`} {
		id := tokenID(b, vocab, s)
		if _, err := e.AllowedTokens(seq); err != nil {
			b.Fatal(err)
		}
		seq = append(seq, id)
	}

	next := tokenID(b, vocab, `a`)
	b.ResetTimer()
	for b.Loop() {
		if _, err := e.AllowedTokens(seq); err != nil {
			b.Fatal(err)
		}
		b.StopTimer()
		seq = append(seq, next)
		b.StartTimer()
	}
}

func BenchmarkNewPrefixTree(b *testing.B) {
	vocab := benchVocab()
	b.ResetTimer()
	for b.Loop() {
		NewPrefixTree(vocab)
	}
}

func BenchmarkRegexWalk(b *testing.B) {
	root := parser.MustRegex(`-?[0-9]+(\.[0-9]+)?`)
	vocab := benchVocab()
	e := New(vocab, root, concatDecoder(vocab), 0)

	var seq []int32
	digits := []string{`1`, `2`, `3`, `.`, `4`, `5`}
	b.ResetTimer()
	for b.Loop() {
		b.StopTimer()
		e = New(vocab, root, concatDecoder(vocab), 0)
		seq = seq[:0]
		b.StartTimer()
		for _, s := range digits {
			if _, err := e.AllowedTokens(seq); err != nil {
				b.Fatal(err)
			}
			seq = append(seq, tokenID(b, vocab, s))
		}
	}
}

func tokenID(tb testing.TB, vocab []Token, s string) int32 {
	tb.Helper()
	for _, tok := range vocab {
		if tok.Value == s {
			return tok.ID
		}
	}
	tb.Fatalf("no token %q", s)
	return 0
}
