package realhost

import (
	"strings"
	"testing"
)

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ubuntu", "NAME=\"Ubuntu\"\nVERSION=\"22.04\"\n", "Ubuntu"},
		{"centos", "ID=centos\nNAME=\"CentOS Linux\"\n", "CentOS Linux"},
		{"unquoted", "NAME=debian\n", "debian"},
		{"missing", "ID=alpine\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOSRelease(strings.NewReader(tt.input)); got != tt.want {
				t.Errorf("parseOSRelease() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHost_OS(t *testing.T) {
	got := New().OS()
	if got == "" || strings.ToUpper(got[:1]) != got[:1] {
		t.Errorf("OS() = %q, want capitalized name", got)
	}
}
