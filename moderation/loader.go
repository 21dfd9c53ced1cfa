package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// Dictionaries maps an ISO 639-1 language code to its censored words.
type Dictionaries map[string][]string

// Words returns the union of all dictionaries.
func (d Dictionaries) Words() []string {
	unique := make(map[string]struct{})
	for _, words := range d {
		for _, w := range words {
			unique[w] = struct{}{}
		}
	}
	all := make([]string, 0, len(unique))
	for w := range unique {
		all = append(all, w)
	}
	return all
}

// LoadEmbedded reads the dictionaries shipped with the binary.
func LoadEmbedded() (Dictionaries, error) {
	return Load(censoredFolder, "censored")
}

// Load scans dir for .txt files, each one being the dictionary of the
// language named by the file ("fr.txt" -> "fr"), one word per line.
func Load(fsys fs.FS, dir string) (Dictionaries, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	dictionaries := make(Dictionaries)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".txt")

		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner copes with both \n and \r\n line endings
		unique := make(map[string]struct{})
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		for w := range unique {
			dictionaries[lang] = append(dictionaries[lang], w)
		}
	}

	if len(dictionaries) == 0 {
		return nil, fmt.Errorf("no censored words found in %s", dir)
	}
	return dictionaries, nil
}
