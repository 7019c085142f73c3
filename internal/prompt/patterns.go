// Package prompt holds the prompt patterns used to drive OpenSwitch shells
// and the detectors that interpret what a shell printed.
package prompt

import (
	"fmt"
	"regexp"
)

// Reserved prompt tokens. They are chosen so that they cannot appear in
// ordinary command output.
const (
	BashForcedToken  = "@~~==::BASH_PROMPT::==~~@"
	VtyshForcedToken = "X@~~==::VTYSH_PROMPT::==~~@X"
)

// vtyshPromptTemplate matches a vtysh prompt for a hostname expression,
// including an optional configuration context such as "(config-if)".
const vtyshPromptTemplate = `(\r\n)?%s(\([-\w\s]+\))?# `

// vtyshStandardHost matches the hostnames found in unset vtysh prompts.
const vtyshStandardHost = `[-\w]+`

var (
	// InitialPrompt matches the prompt of a freshly started bash shell.
	InitialPrompt = regexp.MustCompile(`(^|\n).*[#$] `)

	// BashForcedPrompt matches the bash prompt once PS1 is forced.
	BashForcedPrompt = regexp.MustCompile(regexp.QuoteMeta(BashForcedToken))

	// BashForcedPromptLine matches the forced bash prompt only at the start
	// of the buffer or of a line, so the echo of the export command is
	// skipped.
	BashForcedPromptLine = regexp.MustCompile(`(^|[\r\n])` + regexp.QuoteMeta(BashForcedToken))

	// VtyshForcedPrompt matches the vtysh prompt after "set prompt".
	VtyshForcedPrompt = vtyshPrompt(regexp.QuoteMeta(VtyshForcedToken))

	// VtyshStandardPrompt matches any unset vtysh prompt.
	VtyshStandardPrompt = vtyshPrompt(vtyshStandardHost)
)

func vtyshPrompt(host string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(vtyshPromptTemplate, host))
}

// Join returns a pattern matching any of patterns.
func Join(patterns ...*regexp.Regexp) *regexp.Regexp {
	expr := ""
	for i, p := range patterns {
		if i > 0 {
			expr += "|"
		}
		expr += "(?:" + p.String() + ")"
	}
	return regexp.MustCompile(expr)
}

// ForcePromptCommand returns the bash command that forces PS1 to token.
func ForcePromptCommand(token string) string {
	return "export PS1=" + token
}

// SetPromptCommand returns the vtysh command that forces its prompt.
func SetPromptCommand(token string) string {
	return "set prompt " + token
}
