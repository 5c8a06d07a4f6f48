package piper

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/obinnaokechukwu/speechgen/engine"
)

// ClausePhonemizer converts the first clause of text with a voice.
// speechgen.Bridge implements it.
type ClausePhonemizer interface {
	PhonemizeClause(voice, text string) (engine.Clause, error)
}

// ErrNoProgress is returned when the phonemizer consumes no text.
var ErrNoProgress = errors.New("piper: phonemizer made no progress")

// Phonemize converts all of text to a phoneme string, clause by clause.
//
// Phonemes are NFD-normalized so combining marks map to their own ids. Each
// clause is followed by the punctuation its terminator names, then by a
// newline when it ended a sentence or a space otherwise.
func Phonemize(p ClausePhonemizer, voice, text string) (string, error) {
	var b strings.Builder

	rest := strings.TrimSpace(text)
	for strings.TrimSpace(rest) != "" {
		c, err := p.PhonemizeClause(voice, rest)
		if err != nil {
			return "", err
		}
		if c.Remaining == rest {
			return "", fmt.Errorf("%w at %q", ErrNoProgress, rest)
		}

		b.WriteString(norm.NFD.String(c.Phonemes))
		if r := c.Punctuation(); r != 0 {
			b.WriteRune(r)
		}
		if c.EndsSentence() {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}

		if c.EndOfInput() {
			break
		}
		rest = c.Remaining
	}
	return b.String(), nil
}

// Sentences splits a phoneme string produced by Phonemize into sentences,
// dropping empty ones.
func Sentences(phonemes string) []string {
	var out []string
	for _, s := range strings.Split(phonemes, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
