package cliutil

import (
	"strings"
)

// Wrap the string `s` to a maximum width `w`.  Pass `w` == 0 to do no wrapping.
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func Wrap(w int, s string) string {
	return wrap(0, w, s)
}

// Wrap the string `s` to a maximum width `w` with leading indent `i`.  The first line is not
// indented (this is assumed to be done by caller).  Pass `w` == 0 to do no wrapping
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func WrapIndent(i, w int, s string) string {
	return wrap(i, w, s)
}

func wrap(indent, width int, text string) string {
	if width == 0 {
		return text
	}
	// Inter-word spacing is preserved (think "sentence.  Two spaces."), so wrapping works on
	// substrings of the original text rather than on a re-joined word list.
	maxLen := (width - 5) - 1 - indent
	if maxLen < 1 {
		return text
	}

	var lines []string
	for _, in := range strings.Split(text, "\n") {
		if in == "" || in[0] == ' ' || in[0] == '\t' {
			// Blank and pre-formatted lines pass through untouched.
			lines = append(lines, in)
			continue
		}
		for {
			head, rest := breakLine(in, maxLen)
			lines = append(lines, head)
			if rest == "" {
				break
			}
			in = rest
		}
	}

	pad := strings.Repeat(" ", indent)
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// breakLine splits `s` at the last space at-or-before position `max`, eating the spaces at the
// break.  If the first word is itself longer than `max`, it is emitted unbroken.
func breakLine(s string, max int) (head, rest string) {
	if len(s) <= max {
		return s, ""
	}
	i := strings.LastIndex(s[:max+1], " ")
	if i < 0 {
		i = strings.Index(s, " ")
		if i < 0 {
			return s, ""
		}
	}
	head = strings.TrimRight(s[:i], " ")
	rest = strings.TrimLeft(s[i:], " ")
	return head, rest
}
