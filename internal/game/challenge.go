// Package game holds the word-challenge scoring loop: each round the player
// signs the letters of a target word one by one; finishing a word scores a
// point and draws the next word.
package game

import (
	"math/rand"
	"strings"
	"time"
)

// WordSource hands out target words. Words are sanitized by the Challenge,
// so sources may return arbitrary dictionary entries.
type WordSource interface {
	Next() string
}

// ListSource picks uniformly from a fixed word list.
type ListSource struct {
	words []string
}

func NewListSource(words []string) *ListSource {
	return &ListSource{words: words}
}

func (s *ListSource) Next() string {
	if len(s.words) == 0 {
		return ""
	}
	return s.words[rand.Intn(len(s.words))]
}

// DefaultWords is a small built-in fallback list used when no word file is
// configured.
var DefaultWords = []string{
	"cat", "dog", "sun", "star", "moon", "hand", "sign", "play",
	"game", "word", "fast", "jump", "blue", "gold", "ship", "rock",
}

// Challenge tracks progress through the current target word. Not safe for
// concurrent use; the engine's single-writer loop owns it.
type Challenge struct {
	source   WordSource
	debounce time.Duration

	word      string
	index     int
	lastMatch time.Time
}

// NewChallenge returns an idle challenge; call Reset to deal the first word.
func NewChallenge(source WordSource, debounce time.Duration) *Challenge {
	return &Challenge{source: source, debounce: debounce}
}

// Reset draws a new word and rewinds progress.
func (c *Challenge) Reset() {
	c.word = sanitizeWord(c.source.Next())
	c.index = 0
	c.lastMatch = time.Time{}
}

// Clear drops the current word, deactivating the challenge.
func (c *Challenge) Clear() {
	c.word = ""
	c.index = 0
	c.lastMatch = time.Time{}
}

func (c *Challenge) Word() string { return c.word }
func (c *Challenge) Index() int   { return c.index }

// Expected returns the next letter to sign.
func (c *Challenge) Expected() (string, bool) {
	if c.word == "" || c.index >= len(c.word) {
		return "", false
	}
	return string(c.word[c.index]), true
}

// Advance accepts a classified symbol. A correct letter is only counted
// when the debounce window since the previous accepted letter has passed,
// so one held pose cannot double-count. It reports whether the word was
// completed, in which case the next word has already been dealt.
func (c *Challenge) Advance(label string, now time.Time) bool {
	expected, ok := c.Expected()
	if !ok {
		return false
	}
	if !strings.EqualFold(label, expected) {
		return false
	}
	if !c.lastMatch.IsZero() && now.Sub(c.lastMatch) <= c.debounce {
		return false
	}
	c.index++
	c.lastMatch = now
	if c.index >= len(c.word) {
		c.Reset()
		c.lastMatch = now
		return true
	}
	return false
}

func sanitizeWord(w string) string {
	w = strings.ToUpper(w)
	return strings.Join(strings.Fields(w), "")
}
