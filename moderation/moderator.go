package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks censored words in chat messages. Matching runs on a folded
// copy of the text (lower case, leet digits mapped back to letters,
// punctuation and spaces dropped) so "1d.1.o.t" is caught like "idiot".
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

// NewModerator builds the automaton from the folded form of every word.
// Words made only of noise fold to nothing and are ignored.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	seen := make(map[string]struct{})
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		pattern, _ := fold([]rune(word))
		if len(pattern) == 0 {
			continue
		}
		if _, ok := seen[string(pattern)]; ok {
			continue
		}
		seen[string(pattern)] = struct{}{}
		patterns = append(patterns, pattern)
	}

	moderator := &Moderator{censoredChar: censoredChar, log: log}
	if len(patterns) == 0 {
		log.Warn("Moderator built without any censored word")
		return moderator, nil
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	moderator.matcher = machine
	return moderator, nil
}

// Censor masks every rune of the original text covered by a match, noise
// inside the match included, and keeps the rest untouched.
// It returns the folded dictionary words that matched, in order of appearance.
func (m *Moderator) Censor(content string) (string, []string) {
	if m.matcher == nil {
		return content, nil
	}
	runes := []rune(content)
	folded, positions := fold(runes)
	if len(folded) == 0 {
		return content, nil
	}

	hits := m.matcher.MultiPatternSearch(folded, false)
	if len(hits) == 0 {
		return content, nil
	}

	matched := make([]string, 0, len(hits))
	for _, hit := range hits {
		end := hit.Pos + len(hit.Word)
		if hit.Pos < 0 || end > len(positions) {
			continue
		}
		for i := positions[hit.Pos]; i <= positions[end-1]; i++ {
			runes[i] = m.censoredChar
		}
		matched = append(matched, string(hit.Word))
	}
	return string(runes), matched
}

// fold returns the searchable form of input and, for each folded rune, its
// index in input.
func fold(input []rune) ([]rune, []int) {
	folded := make([]rune, 0, len(input))
	positions := make([]int, 0, len(input))
	for i, r := range input {
		r = unleet(r)
		if isNoise(r) {
			continue
		}
		folded = append(folded, unicode.ToLower(r))
		positions = append(positions, i)
	}
	return folded, positions
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
