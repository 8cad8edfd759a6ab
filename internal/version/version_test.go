package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	got := String("sevasetu")
	if !strings.HasPrefix(got, "sevasetu "+Version+" (commit="+Commit) {
		t.Errorf("String() = %q", got)
	}
	if !strings.Contains(got, "go="+GoVersion) {
		t.Errorf("String() = %q, missing go version", got)
	}
}
