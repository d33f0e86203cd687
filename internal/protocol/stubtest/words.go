package stubtest

import (
	"strings"
)

// splitTop splits s on sep where sep is outside quotes and $( ).
func splitTop(s, sep string) []string {
	var (
		parts  []string
		start  int
		quote  byte
		depth  int
		escape bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escape:
			escape = false
		case c == '\\' && quote != '\'':
			escape = true
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == '$' && quote == '"' && i+1 < len(s) && s[i+1] == '(' {
				depth++
				i++
			} else if c == ')' && depth > 0 {
				depth--
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '$' && i+1 < len(s) && s[i+1] == '(':
			depth++
			i++
		case c == ')' && depth > 0:
			depth--
		case depth == 0 && strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			start = i + len(sep)
			i += len(sep) - 1
		}
	}
	return append(parts, s[start:])
}

// words tokenizes one simple command, expanding $VAR and $(cmd) and
// dropping redirections.
func (p *process) words(cmd string) []string {
	var (
		words   []string
		current strings.Builder
		inWord  bool
	)
	flush := func() {
		if inWord {
			words = append(words, current.String())
		}
		current.Reset()
		inWord = false
	}

	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			flush()
		case c == '\\' && i+1 < len(cmd):
			i++
			current.WriteByte(cmd[i])
			inWord = true
		case c == '\'':
			end := strings.IndexByte(cmd[i+1:], '\'')
			if end < 0 {
				end = len(cmd) - i - 1
			}
			current.WriteString(cmd[i+1 : i+1+end])
			i += end + 1
			inWord = true
		case c == '"':
			i = p.doubleQuoted(cmd, i+1, &current)
			inWord = true
		case c == '$':
			i = p.expand(cmd, i, &current)
			inWord = true
		default:
			current.WriteByte(c)
			inWord = true
		}
	}
	flush()

	kept := words[:0]
	for _, w := range words {
		if isRedirect(w) {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

// doubleQuoted consumes a "..." body starting at i and returns the index of
// the closing quote.
func (p *process) doubleQuoted(cmd string, i int, out *strings.Builder) int {
	for ; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case c == '"':
			return i
		case c == '\\' && i+1 < len(cmd) && strings.IndexByte(`"\$`, cmd[i+1]) >= 0:
			i++
			out.WriteByte(cmd[i])
		case c == '$':
			i = p.expand(cmd, i, out)
		default:
			out.WriteByte(c)
		}
	}
	return i
}

// expand handles $NAME and $(cmd) at i and returns the last consumed index.
func (p *process) expand(cmd string, i int, out *strings.Builder) int {
	if i+1 < len(cmd) && cmd[i+1] == '(' {
		depth := 1
		j := i + 2
		for ; j < len(cmd) && depth > 0; j++ {
			switch cmd[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		out.WriteString(p.subshell(cmd[i+2 : j-1]))
		return j - 1
	}

	j := i + 1
	for j < len(cmd) && (cmd[j] == '_' || cmd[j] >= 'A' && cmd[j] <= 'Z' || cmd[j] >= 'a' && cmd[j] <= 'z' || cmd[j] >= '0' && cmd[j] <= '9') {
		j++
	}
	if j == i+1 {
		out.WriteByte('$')
		return i
	}
	out.WriteString(p.env[cmd[i+1:j]])
	return j - 1
}

func isRedirect(w string) bool {
	w = strings.TrimLeft(w, "0123456789")
	return strings.HasPrefix(w, ">") || strings.HasPrefix(w, "<")
}
