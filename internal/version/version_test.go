// ABOUTME: Tests for build identity values
// ABOUTME: Ensures the banner and identity strings are populated
package version

import (
	"strings"
	"testing"
)

func TestIdentityDefined(t *testing.T) {
	for name, v := range map[string]string{
		"Version":      Version,
		"Product":      Product,
		"Manufacturer": Manufacturer,
	} {
		if v == "" {
			t.Errorf("%s should not be empty", name)
		}
		if len(v) > 100 {
			t.Errorf("%s is unreasonably long: %q", name, v)
		}
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Product+" ") {
		t.Errorf("String() = %q, want product prefix", s)
	}
	if !strings.HasSuffix(s, Version) {
		t.Errorf("String() = %q, want version suffix", s)
	}
}
