package prompt

import (
	"regexp"
	"strings"
)

// DefaultCrashMarker is printed by the shell when vtysh dies on SIGSEGV.
const DefaultCrashMarker = "Segmentation fault"

// CrashDetector recognizes a configuration shell that died in the middle of
// a command.
//
// A crash prints the marker and drops the user back into the parent bash
// shell, so the prompt that ended the command is the forced bash prompt
// instead of the vtysh one. A healthy vtysh that merely prints the marker
// text is not a crash.
type CrashDetector struct {
	Marker string
	Parent *regexp.Regexp
}

// NewCrashDetector returns a detector for marker with the forced bash
// prompt as the parent prompt.
func NewCrashDetector(marker string) *CrashDetector {
	return &CrashDetector{
		Marker: marker,
		Parent: BashForcedPrompt,
	}
}

// Detect reports whether response together with the matched prompt chunk
// carries the crash signature.
func (d *CrashDetector) Detect(response, matched string) bool {
	if d == nil || d.Marker == "" || d.Parent == nil {
		return false
	}
	if !strings.Contains(response, d.Marker) {
		return false
	}
	loc := d.Parent.FindStringIndex(matched)
	return loc != nil && loc[0] == 0
}
