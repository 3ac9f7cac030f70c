package profiles

import (
	"path/filepath"
	"strings"
)

// Select returns the first profile whose predicates all pass for the given
// filename and header row, or nil when no profile matches. Callers must
// treat nil as "this file cannot be classified" and dead-letter the whole
// file; guessing a mapping is never allowed.
func (reg *Registry) Select(filename string, header []string) *Profile {
	base := filepath.Base(filename)
	for i := range reg.profiles {
		p := &reg.profiles[i]
		if p.When.FilenameGlob != "" {
			ok, err := filepath.Match(p.When.FilenameGlob, base)
			if err != nil || !ok {
				continue
			}
		}
		if len(p.When.HeaderContains) > 0 && !headerHasAll(header, p.When.HeaderContains) {
			continue
		}
		return p
	}
	return nil
}

func headerHasAll(header, wanted []string) bool {
	cols := make(map[string]bool, len(header))
	for _, h := range header {
		cols[strings.TrimSpace(h)] = true
	}
	for _, w := range wanted {
		if !cols[strings.TrimSpace(w)] {
			return false
		}
	}
	return true
}
