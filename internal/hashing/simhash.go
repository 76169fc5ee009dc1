package hashing

import (
	"crypto/md5"
	"encoding/hex"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
)

var tokenSplit = regexp.MustCompile(`\W+`)

// tokenize splits on non-word boundaries, lowercases, and drops tokens of
// length <= 2.
func tokenize(message string) []string {
	var tokens []string
	for _, tok := range tokenSplit.Split(strings.ToLower(message), -1) {
		if len(tok) > 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// SimHash computes a 64-bit locality-sensitive hash of the message's word
// tokens. Each token is hashed with MD5; the first 16 hex chars form a 64-bit
// value whose bits vote +1/-1 per position. Bit i of the result is set iff
// the vote total at i is positive. An empty token set hashes to 0.
func SimHash(message string) uint64 {
	tokens := tokenize(message)
	if len(tokens) == 0 {
		return 0
	}

	var v [64]int
	for _, tok := range tokens {
		sum := md5.Sum([]byte(tok))
		h, err := strconv.ParseUint(hex.EncodeToString(sum[:])[:16], 16, 64)
		if err != nil {
			// Unreachable: 16 hex chars always parse.
			continue
		}
		for i := 0; i < 64; i++ {
			if h&(1<<uint(i)) != 0 {
				v[i]++
			} else {
				v[i]--
			}
		}
	}

	var out uint64
	for i := 0; i < 64; i++ {
		if v[i] > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

// Hamming returns the number of differing bits between two 64-bit hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
