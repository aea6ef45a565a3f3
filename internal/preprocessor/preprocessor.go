// Package preprocessor recognizes the `run command` / `run cmdfile` run-
// command surface, resolves aliases, and expands command files into
// concrete run-commands.
package preprocessor

import (
	"fmt"
	"strings"

	"github.com/omnilab/atsconsole/internal/cmdfile"
	"github.com/omnilab/atsconsole/internal/token"
)

// Kind distinguishes the three PreprocessingResult variants: a rewritten
// command list, a user-facing error, or a passthrough (no change).
type Kind int

const (
	KindCommands Kind = iota
	KindError
	KindPassthrough
)

// Result is a PreprocessingResult: exactly one of Commands or Message is
// meaningful, selected by Kind. A KindCommands result with an empty
// Commands slice is a distinct, valid value from KindPassthrough.
type Result struct {
	Kind     Kind
	Commands [][]string
	Message  string
}

func commandsResult(cmds [][]string) Result { return Result{Kind: KindCommands, Commands: cmds} }
func errorResult(msg string) Result         { return Result{Kind: KindError, Message: msg} }
func passthroughResult() Result             { return Result{Kind: KindPassthrough} }

// AliasResolver looks up a known alias by its literal token text and
// returns its unparsed replacement text.
type AliasResolver interface {
	Resolve(token string) (replacement string, ok bool)
}

// CmdFileParser parses a command file into expanded command lines. Satisfied
// by *cmdfile.Parser.
type CmdFileParser interface {
	ParseFile(path string) ([]cmdfile.CommandLine, error)
}

// Preprocess classifies and rewrites a single user command. aliases and
// parser may be nil; a nil aliases disables alias resolution, a nil parser
// makes cmdfile/cmdfileAndExit commands always fail.
func Preprocess(tokens []string, parser CmdFileParser, aliases AliasResolver) Result {
	if aliases != nil {
		rewritten, err := resolveAliases(tokens, aliases)
		if err != nil {
			return errorResult(err.Error())
		}
		tokens = rewritten
	}

	if len(tokens) == 0 || !strings.EqualFold(tokens[0], "run") || len(tokens) < 2 {
		return passthroughResult()
	}

	switch tokens[1] {
	case "command":
		return commandsResult([][]string{prepend("run", tokens[2:])})
	case "commandAndExit":
		return commandsResult([][]string{
			prepend("run", tokens[2:]),
			{"exit", "-c", "-s"},
		})
	case "cmdfile":
		return preprocessCmdfile(tokens, parser, false)
	case "cmdfileAndExit":
		return preprocessCmdfile(tokens, parser, true)
	default:
		return passthroughResult()
	}
}

func preprocessCmdfile(tokens []string, parser CmdFileParser, exit bool) Result {
	if len(tokens) < 3 {
		return errorResult("Cmdfile path is not specified")
	}
	if parser == nil {
		return errorResult("Failed to read cmdfile: no command-file parser configured")
	}

	path := tokens[2]
	extra := tokens[3:]

	lines, err := parser.ParseFile(path)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to read cmdfile: %v", err))
	}

	cmds := make([][]string, 0, len(lines)+1)
	for _, l := range lines {
		cmd := make([]string, 0, 1+len(l.Tokens)+len(extra))
		cmd = append(cmd, "run")
		cmd = append(cmd, l.Tokens...)
		cmd = append(cmd, extra...)
		cmds = append(cmds, cmd)
	}
	if exit {
		cmds = append(cmds, []string{"exit", "-c", "-s"})
	}
	return commandsResult(cmds)
}

// resolveAliases scans tokens and splices in the tokenised replacement of
// any recognized alias. If no token is an alias, the original slice is
// returned unchanged.
func resolveAliases(tokens []string, aliases AliasResolver) ([]string, error) {
	substituted := false
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		replacement, ok := aliases.Resolve(tok)
		if !ok {
			out = append(out, tok)
			continue
		}
		expanded, err := token.Tokenize(replacement)
		if err != nil {
			return nil, fmt.Errorf("alias %q: %w", tok, err)
		}
		out = append(out, expanded...)
		substituted = true
	}
	if !substituted {
		return tokens, nil
	}
	return out, nil
}

func prepend(first string, rest []string) []string {
	out := make([]string, 0, 1+len(rest))
	out = append(out, first)
	out = append(out, rest...)
	return out
}
