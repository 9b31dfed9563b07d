package enforcer

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// decodeShard bounds how many tokens one worker decodes at a time.
const decodeShard = 2048

// DecodeTokens builds the (id, string) vocabulary for an enforcer by
// decoding every id in [0, n) individually, sharded across workers.
// Decoding tens of thousands of single tokens dominates enforcer
// construction time, and each decode is independent.
//
// Tokenizers whose single-token decode differs from in-context decoding
// (byte-merging tokenizers, for example) should build []Token from their
// own vocabulary tables instead.
func DecodeTokens(decode DecodeFunc, n int) ([]Token, error) {
	if n <= 0 {
		return nil, errors.New("enforcer: empty vocabulary")
	}

	tokens := make([]Token, n)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < n; start += decodeShard {
		g.Go(func() error {
			for i := start; i < min(start+decodeShard, n); i++ {
				s, err := decode([]int32{int32(i)})
				if err != nil {
					return fmt.Errorf("decode token %d: %w", i, err)
				}
				tokens[i] = Token{ID: int32(i), Value: s}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tokens, nil
}
