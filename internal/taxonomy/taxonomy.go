// Package taxonomy holds the category vocabulary offered by the expense form.
package taxonomy

import (
	"bufio"
	"os"
	"strings"
)

// DefaultCategories is used when neither an env list nor a seed file is configured.
var DefaultCategories = []string{"Food", "Entertainment", "Travel"}

// Set is an ordered, deduplicated list of category names.
type Set struct {
	names []string
	index map[string]struct{}
}

func New(names []string) *Set {
	s := &Set{index: map[string]struct{}{}}
	for _, n := range dedupe(names) {
		s.names = append(s.names, n)
		s.index[n] = struct{}{}
	}
	return s
}

// Load builds the vocabulary from a comma-separated list, falling back to the
// seed file and then to DefaultCategories.
func Load(csv, file string) *Set {
	if names := splitCSV(csv); len(names) > 0 {
		return New(names)
	}
	if file != "" {
		if names := readLines(file); len(names) > 0 {
			return New(names)
		}
	}
	return New(DefaultCategories)
}

func (s *Set) Contains(name string) bool {
	_, ok := s.index[strings.TrimSpace(name)]
	return ok
}

// Names returns a copy in configured order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Set) Len() int { return len(s.names) }

func splitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return dedupe(strings.Split(csv, ","))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
