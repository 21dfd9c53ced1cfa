package moderation

import (
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Below this confidence the detected language is ignored.
const minConfidence = 0.5

// LanguageModerator picks the dictionary of the language a message is written in.
// Messages whose language is unknown or unreliable are checked against every dictionary.
type LanguageModerator struct {
	log      *slog.Logger
	byLang   map[string]*Moderator
	fallback *Moderator
}

func NewLanguageModerator(dictionaries Dictionaries, censoredChar rune, log *slog.Logger) (*LanguageModerator, error) {
	byLang := make(map[string]*Moderator, len(dictionaries))
	for lang, words := range dictionaries {
		m, err := NewModerator(words, censoredChar, log)
		if err != nil {
			return nil, err
		}
		byLang[lang] = m
	}
	fallback, err := NewModerator(dictionaries.Words(), censoredChar, log)
	if err != nil {
		return nil, err
	}
	return &LanguageModerator{log: log, byLang: byLang, fallback: fallback}, nil
}

func (l *LanguageModerator) Censor(content string) (string, []string) {
	if strings.TrimSpace(content) == "" {
		return content, nil
	}
	info := whatlanggo.Detect(content)
	lang := info.Lang.Iso6391()
	if m, ok := l.byLang[lang]; ok && info.Confidence >= minConfidence {
		censored, words := m.Censor(content)
		if len(words) > 0 {
			l.log.Debug("Content censored", "lang", lang, "hits", len(words))
		}
		return censored, words
	}
	return l.fallback.Censor(content)
}
