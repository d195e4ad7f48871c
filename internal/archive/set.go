package archive

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Set is a set of bare filenames
type Set map[string]struct{}

// NewSet builds a set from names
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s Set) Add(name string)    { s[name] = struct{}{} }
func (s Set) Remove(name string) { delete(s, name) }
func (s Set) Len() int           { return len(s) }

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Subtract removes every member of other from s
func (s Set) Subtract(other Set) {
	for n := range other {
		delete(s, n)
	}
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// ReadNameList loads a newline-separated filename list. Blank lines are
// ignored; a trailing carriage return is stripped.
func ReadNameList(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open name list: %w", err)
	}
	defer f.Close()

	names := make(Set)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		name := strings.TrimSuffix(scanner.Text(), "\r")
		if name == "" {
			continue
		}
		names.Add(name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read name list %s: %w", path, err)
	}
	return names, nil
}
