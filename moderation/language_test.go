package moderation

import (
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"words/en.txt":    {Data: []byte("badger\r\nsnake\n\nbadger\n")},
		"words/fr.txt":    {Data: []byte("blaireau\n")},
		"words/README.md": {Data: []byte("ignored")},
		"words/nested/x":  {Data: []byte("ignored")},
	}

	dictionaries, err := Load(fsys, "words")

	req.NoError(err)
	req.Len(dictionaries, 2)
	req.ElementsMatch([]string{"badger", "snake"}, dictionaries["en"])
	req.ElementsMatch([]string{"badger", "snake", "blaireau"}, dictionaries.Words())
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(fstest.MapFS{"words/README.md": {Data: []byte("x")}}, "words")
	require.Error(t, err)
}

func TestLoadEmbedded(t *testing.T) {
	req := require.New(t)
	dictionaries, err := LoadEmbedded()
	req.NoError(err)
	req.Contains(dictionaries, "en")
	req.Contains(dictionaries, "fr")
}

func TestLanguageModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionaries := Dictionaries{
		"en": {"idiot"},
		"fr": {"idiot", "abruti"},
	}
	mod, err := NewLanguageModerator(dictionaries, replacementChar, log)
	req.NoError(err)

	// When a sentence contains a censored word
	content, words := mod.Censor("You are such an idiot, honestly I cannot believe what you did")

	// Then the word is masked whatever language was detected
	req.Equal("You are such an *****, honestly I cannot believe what you did", content)
	req.Equal([]string{"idiot"}, words)

	// And empty content is left untouched
	content, words = mod.Censor("")
	req.Equal("", content)
	req.Nil(words)
}
