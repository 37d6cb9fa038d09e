package paths

import (
	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// IgnoreList holds compiled ignore patterns. The zero value and a nil list
// both match nothing.
type IgnoreList struct {
	patterns []*regexp2.Regexp
}

// CompileIgnores compiles the configured ignore patterns, case-insensitive.
func CompileIgnores(patterns []string) (*IgnoreList, error) {
	list := &IgnoreList{}

	for _, pattern := range patterns {
		re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
		if err != nil {
			return nil, errors.Wrapf(err, "compile ignore pattern: %q", pattern)
		}

		list.patterns = append(list.patterns, re)
	}

	return list, nil
}

// Match reports whether path matches any ignore pattern. Evaluation errors
// count as no match.
func (l *IgnoreList) Match(path string) bool {
	if l == nil {
		return false
	}

	for _, re := range l.patterns {
		if ok, err := re.MatchString(path); err == nil && ok {
			return true
		}
	}

	return false
}
