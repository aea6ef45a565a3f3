package cmdfile

import (
	"fmt"
	"log"
	"regexp"
)

// maxExpansionIterations bounds the fixpoint expansion loop. Preserved
// exactly from the source behaviour (spec §9): runaway macro definitions
// cannot expand forever.
const maxExpansionIterations = 20

var macroCallRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)\(\)$`)

// expand runs the bounded fixpoint expansion described in spec §4.C over
// lines, using the parser's short- and long-macro tables.
func (p *Parser) expand(lines []CommandLine) ([]CommandLine, error) {
	cur := make([]CommandLine, len(lines))
	copy(cur, lines)

	bits := make([]bool, len(cur))
	for i := range bits {
		bits[i] = true
	}

	for iter := 0; iter < maxExpansionIterations; iter++ {
		if !anySet(bits) {
			return cur, nil
		}

		var nextLines []CommandLine
		var nextBits []bool
		changed := false

		for i, line := range cur {
			if !bits[i] {
				nextLines = append(nextLines, line)
				nextBits = append(nextBits, false)
				continue
			}

			newTokens, expandedAny := expandShortMacros(line.Tokens, p.shortMacros)
			if expandedAny {
				nextLines = append(nextLines, CommandLine{Tokens: newTokens, File: line.File, Line: line.Line})
				nextBits = append(nextBits, true)
				changed = true
				continue
			}

			idx, found := firstMacroCallIndex(line.Tokens)
			if !found {
				nextLines = append(nextLines, line)
				nextBits = append(nextBits, false)
				continue
			}

			name := macroCallRe.FindStringSubmatch(line.Tokens[idx])[1]
			body, ok := p.longMacros[name]
			if !ok {
				return nil, &ParseError{
					File: line.File,
					Line: line.Line,
					Msg:  fmt.Sprintf("Macro call %s does not match any macro definitions.", line.Tokens[idx]),
				}
			}

			prefix := line.Tokens[:idx]
			suffix := line.Tokens[idx+1:]
			for _, bodyLine := range body {
				merged := make([]string, 0, len(prefix)+len(bodyLine.Tokens)+len(suffix))
				merged = append(merged, prefix...)
				merged = append(merged, bodyLine.Tokens...)
				merged = append(merged, suffix...)
				nextLines = append(nextLines, CommandLine{Tokens: merged, File: line.File, Line: line.Line})
				nextBits = append(nextBits, true)
			}
			changed = true
		}

		cur = nextLines
		bits = nextBits

		if !changed {
			return cur, nil
		}

		if iter == maxExpansionIterations-1 && anySet(bits) {
			log.Printf("cmdfile: macro expansion hit the %d-iteration cap with unresolved calls remaining", maxExpansionIterations)
		}
	}

	return cur, nil
}

// expandShortMacros replaces every token matching a defined short macro with
// that macro's expansion tokens, in a single left-to-right pass. It reports
// whether any replacement occurred.
func expandShortMacros(tokens []string, short map[string]CommandLine) ([]string, bool) {
	var out []string
	expandedAny := false
	for _, tok := range tokens {
		if m := macroCallRe.FindStringSubmatch(tok); m != nil {
			if cl, ok := short[m[1]]; ok {
				out = append(out, cl.Tokens...)
				expandedAny = true
				continue
			}
		}
		out = append(out, tok)
	}
	return out, expandedAny
}

// firstMacroCallIndex returns the index of the first token matching the
// macro-call pattern `name()`, regardless of whether name is defined.
func firstMacroCallIndex(tokens []string) (int, bool) {
	for i, tok := range tokens {
		if macroCallRe.MatchString(tok) {
			return i, true
		}
	}
	return 0, false
}

func anySet(bits []bool) bool {
	for _, b := range bits {
		if b {
			return true
		}
	}
	return false
}
