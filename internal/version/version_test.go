package version

import (
	"strings"
	"testing"
)

func Test_String_ContainsAllFields(t *testing.T) {
	t.Parallel()
	s := String()
	for _, want := range []string{"ragstore", Version, Commit, BuildDate} {
		if !strings.Contains(s, want) {
			t.Errorf("version string %q missing %q", s, want)
		}
	}
}
