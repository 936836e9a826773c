package passage

import (
	"fmt"
	"os"
	"strings"

	"github.com/verte-zerg/speedtype/internal/generator"
	"github.com/verte-zerg/speedtype/internal/wordlist"
)

// Source kinds accepted by Resolve.
const (
	SourceSample  = "sample"
	SourceFile    = "file"
	SourceLibrary = "library"
	SourceWords   = "words"
)

// SampleText is the built-in passage used when nothing else is configured.
const SampleText = "The quick brown fox jumps over the lazy dog. Typing tests measure speed and accuracy. " +
	"Try to keep your eyes on the text and type smoothly without looking at the keyboard."

// Options selects and configures a text source.
type Options struct {
	Source       string
	TextFile     string
	LibraryPath  string
	PassageName  string
	WordListPath string
	Lang         string
	Words        int
	CapsPct      float64
	PunctPct     float64
	PunctSet     string
}

// Sample returns the normalized built-in passage.
func Sample() Passage {
	return Normalize(SampleText)
}

// LoadFile reads a plain-text file and normalizes it.
func LoadFile(path string) (Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Passage{}, fmt.Errorf("failed to read text file: %w", err)
	}
	p, err := FromString(string(data))
	if err != nil {
		return Passage{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Generate builds a passage from random words of a word list.
func Generate(gen *generator.Generator, words []string, opts Options) (Passage, error) {
	if len(words) == 0 {
		return Passage{}, fmt.Errorf("word list: %w", ErrNoUsableText)
	}
	if opts.Words <= 0 {
		return Passage{}, fmt.Errorf("word count must be > 0")
	}
	picked := gen.Generate(words, opts.Words, opts.CapsPct, opts.PunctPct, []rune(opts.PunctSet))
	return FromString(strings.Join(picked, " "))
}

// Resolve loads the passage described by opts.
func Resolve(opts Options, gen *generator.Generator) (Passage, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Source)) {
	case "", SourceSample:
		return Sample(), nil
	case SourceFile:
		if opts.TextFile == "" {
			return Passage{}, fmt.Errorf("text file path is required for source %q", SourceFile)
		}
		return LoadFile(opts.TextFile)
	case SourceLibrary:
		lib, err := LoadLibrary(opts.LibraryPath)
		if err != nil {
			return Passage{}, err
		}
		return lib.Get(opts.PassageName)
	case SourceWords:
		words, err := wordlist.LoadWords(opts.WordListPath, opts.Lang)
		if err != nil {
			return Passage{}, fmt.Errorf("failed to load word list: %w", err)
		}
		if gen == nil {
			gen = generator.New()
		}
		return Generate(gen, words, opts)
	default:
		return Passage{}, fmt.Errorf("unknown text source %q", opts.Source)
	}
}
