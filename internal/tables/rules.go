package tables

import (
	"errors"
	"fmt"
	"strings"
)

// Context symbols accepted on either side of a rule's match. '%' is only
// valid on the right.
const (
	contextSymbols      = " #.&@^+:"
	rightContextSymbols = contextSymbols + "%"
)

// ParseRule splits a rule written as LEFT(MATCH)RIGHT=OUT.
func ParseRule(text string) (Rule, error) {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return Rule{}, errors.New("missing '('")
	}
	closeAt := strings.IndexByte(text[open+1:], ')')
	if closeAt < 0 {
		return Rule{}, errors.New("missing ')'")
	}
	closeAt += open + 1
	eq := strings.IndexByte(text[closeAt+1:], '=')
	if eq < 0 {
		return Rule{}, errors.New("missing '='")
	}
	eq += closeAt + 1

	r := Rule{
		Left:  text[:open],
		Match: text[open+1 : closeAt],
		Right: text[closeAt+1 : eq],
		Out:   text[eq+1:],
	}
	if r.Match == "" {
		return Rule{}, errors.New("empty match")
	}
	return r, nil
}

func (s *Set) checkRule(r Rule) error {
	for i := 0; i < len(r.Left); i++ {
		c := r.Left[i]
		if s.Classes[c]&ClassLetterLike == 0 && strings.IndexByte(contextSymbols, c) < 0 {
			return fmt.Errorf("rule %q: unknown left context symbol %q", r, c)
		}
	}
	for i := 0; i < len(r.Right); i++ {
		c := r.Right[i]
		if s.Classes[c]&ClassLetterLike == 0 && strings.IndexByte(rightContextSymbols, c) < 0 {
			return fmt.Errorf("rule %q: unknown right context symbol %q", r, c)
		}
	}
	return nil
}
