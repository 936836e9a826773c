package passage

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Library is a named collection of passages loaded from YAML.
//
//	passages:
//	  - name: fox
//	    text: |
//	      The quick brown fox ...
type Library struct {
	entries map[string]Passage
	order   []string
}

type libraryFile struct {
	Passages []struct {
		Name string `yaml:"name"`
		Text string `yaml:"text"`
	} `yaml:"passages"`
}

// LoadLibrary reads a YAML passage library. Entries that normalize to
// nothing are skipped.
func LoadLibrary(path string) (*Library, error) {
	if path == "" {
		return nil, fmt.Errorf("passage library path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read passage library: %w", err)
	}
	return ParseLibrary(data)
}

// ParseLibrary decodes a YAML passage library from memory.
func ParseLibrary(data []byte) (*Library, error) {
	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode passage library: %w", err)
	}
	lib := &Library{entries: map[string]Passage{}}
	for _, entry := range file.Passages {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		p := Normalize(entry.Text)
		if p.IsEmpty() {
			continue
		}
		if _, dup := lib.entries[name]; !dup {
			lib.order = append(lib.order, name)
		}
		lib.entries[name] = p
	}
	if len(lib.entries) == 0 {
		return nil, fmt.Errorf("passage library: %w", ErrNoUsableText)
	}
	return lib, nil
}

// Names returns passage names in file order.
func (l *Library) Names() []string {
	return append([]string(nil), l.order...)
}

// Get returns a passage by name. An empty name selects the first entry.
func (l *Library) Get(name string) (Passage, error) {
	if name == "" {
		return l.entries[l.order[0]], nil
	}
	p, ok := l.entries[name]
	if !ok {
		known := l.Names()
		sort.Strings(known)
		return Passage{}, fmt.Errorf("unknown passage %q (available: %s)", name, strings.Join(known, ", "))
	}
	return p, nil
}
