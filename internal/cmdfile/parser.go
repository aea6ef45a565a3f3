package cmdfile

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/omnilab/atsconsole/internal/token"
)

// Parser turns command files into an expanded list of CommandLines. A
// Parser's macro tables, accumulated lines, and includedFiles set are reset
// at the top of every ParseFile call, matching the spec's parse-scoped
// lifecycle (§3 "Lifecycles").
type Parser struct {
	shortMacros   map[string]CommandLine
	longMacros    map[string][]CommandLine
	lines         []CommandLine
	includedFiles map[string]bool
}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) reset() {
	p.shortMacros = make(map[string]CommandLine)
	p.longMacros = make(map[string][]CommandLine)
	p.lines = nil
	p.includedFiles = make(map[string]bool)
}

// ParseFile parses path (and everything it transitively INCLUDEs), expands
// all macro calls, and returns the resulting command lines. The outer file
// itself is not reported as a dependency; only files it (transitively)
// includes are, via Dependencies after a call to ParseFile.
func (p *Parser) ParseFile(path string) ([]CommandLine, error) {
	p.reset()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ReadError{File: path, Err: err}
	}

	if err := p.parseFileRec(abs); err != nil {
		return nil, err
	}

	// The outer file is removed from the included-files set after parse so
	// the set represents dependencies only (spec §4.B).
	delete(p.includedFiles, abs)

	return p.expand(p.lines)
}

// Dependencies returns the absolute paths of every file transitively
// INCLUDEd by the most recent ParseFile call, not including the outer file
// itself. Valid only after a successful ParseFile call.
func (p *Parser) Dependencies() []string {
	out := make([]string, 0, len(p.includedFiles))
	for f := range p.includedFiles {
		out = append(out, f)
	}
	return out
}

func (p *Parser) parseFileRec(abs string) error {
	// INCLUDE is silently idempotent per parse: a repeat include collapses.
	if p.includedFiles[abs] {
		return nil
	}
	p.includedFiles[abs] = true

	f, err := os.Open(abs)
	if err != nil {
		return &ReadError{File: abs, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		tokens, err := token.Tokenize(trimmed)
		if err != nil {
			return &ParseError{File: abs, Line: lineNo, Msg: "tokenizer: " + err.Error()}
		}

		switch {
		case len(tokens) >= 4 && tokens[0] == "MACRO" && tokens[2] == "=":
			name := tokens[1]
			if _, exists := p.shortMacros[name]; exists {
				log.Printf("cmdfile: %s:%d: redefining short macro %q", abs, lineNo, name)
			}
			p.shortMacros[name] = CommandLine{Tokens: cloneTokens(tokens[3:]), File: abs, Line: lineNo}

		case len(tokens) == 3 && tokens[0] == "LONG" && tokens[1] == "MACRO":
			name := tokens[2]
			body, err := p.readLongMacroBody(scanner, &lineNo, abs)
			if err != nil {
				return err
			}
			if _, exists := p.longMacros[name]; exists {
				log.Printf("cmdfile: %s:%d: redefining long macro %q", abs, lineNo, name)
			}
			p.longMacros[name] = body

		case len(tokens) == 2 && tokens[0] == "INCLUDE":
			incPath := tokens[1]
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(filepath.Dir(abs), incPath)
			}
			incAbs, err := filepath.Abs(incPath)
			if err != nil {
				return &ReadError{File: incPath, Err: err}
			}
			if err := p.parseFileRec(incAbs); err != nil {
				return err
			}

		default:
			p.lines = append(p.lines, CommandLine{Tokens: tokens, File: abs, Line: lineNo})
		}
	}

	if err := scanner.Err(); err != nil {
		return &ReadError{File: abs, Err: err}
	}
	return nil
}

// readLongMacroBody reads raw lines verbatim until a line whose trimmed
// content equals "END MACRO". Lines that are not empty/comment are
// tokenised and appended to the body. EOF before END MACRO is fatal.
func (p *Parser) readLongMacroBody(scanner *bufio.Scanner, lineNo *int, file string) ([]CommandLine, error) {
	var body []CommandLine
	for scanner.Scan() {
		*lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "END MACRO" {
			return body, nil
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		tokens, err := token.Tokenize(trimmed)
		if err != nil {
			return nil, &ParseError{File: file, Line: *lineNo, Msg: "tokenizer: " + err.Error()}
		}
		body = append(body, CommandLine{Tokens: tokens, File: file, Line: *lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ReadError{File: file, Err: err}
	}
	return nil, &ParseError{File: file, Line: *lineNo, Msg: "unterminated LONG MACRO: missing END MACRO"}
}
