package version

import (
	"strings"
	"testing"
)

func TestFull(t *testing.T) {
	got := Full("opsharness")
	for _, want := range []string{"opsharness dev", "commit:  unknown", "built:   unknown"} {
		if !strings.Contains(got, want) {
			t.Errorf("Full() = %q, missing %q", got, want)
		}
	}
}
