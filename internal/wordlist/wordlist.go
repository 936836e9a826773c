// Package wordlist loads word lists from files.
package wordlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
)

// LoadWords reads one word per line from path, keeping only words accepted
// by the filter for lang.
func LoadWords(path, lang string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("word list path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	keep := FilterForLang(lang)
	words := lo.Uniq(lo.Filter(lines, func(line string, _ int) bool {
		return line != "" && keep(line)
	}))
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return words, nil
}
