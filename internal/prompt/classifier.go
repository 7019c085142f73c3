package prompt

import (
	"regexp"
	"strings"
)

// FailureKind names an in-band error reported by a healthy vtysh.
type FailureKind string

const (
	FailureUnknownCommand    FailureKind = "unknown_command"
	FailureIncompleteCommand FailureKind = "incomplete_command"
	FailureInvalidInput      FailureKind = "invalid_input"
	FailureAmbiguousCommand  FailureKind = "ambiguous_command"
	FailureGeneric           FailureKind = "error"
)

// Classification describes an ordinary command failure. The shell that
// printed it is still alive.
type Classification struct {
	Kind    FailureKind
	Message string
}

type failurePattern struct {
	kind  FailureKind
	regex *regexp.Regexp
}

var failurePatterns = []failurePattern{
	{FailureUnknownCommand, regexp.MustCompile(`(?m)^%\s*Unknown command.*$`)},
	{FailureIncompleteCommand, regexp.MustCompile(`(?m)^%\s*Command incomplete.*$`)},
	{FailureInvalidInput, regexp.MustCompile(`(?m)^%\s*Invalid input.*$`)},
	{FailureAmbiguousCommand, regexp.MustCompile(`(?m)^%\s*Ambiguous command.*$`)},
	{FailureGeneric, regexp.MustCompile(`(?m)^%\s*(Error|Failed).*$`)},
}

// Classify returns the in-band failure found in a command response, or nil
// when the response carries none.
func Classify(response string) *Classification {
	for _, p := range failurePatterns {
		if m := p.regex.FindString(response); m != "" {
			return &Classification{
				Kind:    p.kind,
				Message: strings.TrimSpace(strings.TrimRight(m, "\r")),
			}
		}
	}
	return nil
}
