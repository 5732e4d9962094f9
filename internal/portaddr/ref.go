// internal/portaddr/ref.go
package portaddr

import (
	"fmt"
	"regexp"
	"strings"
)

// Ref addresses a port of a node.
type Ref struct {
	Node string
	Port string
}

var (
	nodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	portRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidName reports whether s may be used as a node name.
func ValidName(s string) bool {
	if s == "." || s == ".." || s == "-" {
		return false
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	return nodeRegex.MatchString(s)
}

// Parse reads the canonical `node.port` form.
func Parse(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, fmt.Errorf("port reference cannot be empty")
	}
	i := strings.LastIndexByte(raw, '.')
	if i < 0 {
		return Ref{}, fmt.Errorf("port reference %q has no port part, want node.port", raw)
	}
	ref := Ref{Node: raw[:i], Port: raw[i+1:]}
	if !ValidName(ref.Node) {
		return Ref{}, fmt.Errorf("invalid node in port reference %q", raw)
	}
	if !portRegex.MatchString(ref.Port) {
		return Ref{}, fmt.Errorf("invalid port in port reference %q", raw)
	}
	return ref, nil
}

// MustParse is Parse for literals in tests and built-in descriptions.
func MustParse(raw string) Ref {
	ref, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return ref
}

// String serializes the Ref into its canonical form.
func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Node + "." + r.Port
}

func (r Ref) IsZero() bool { return r.Node == "" && r.Port == "" }

func (r Ref) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Ref) UnmarshalText(b []byte) error {
	ref, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
