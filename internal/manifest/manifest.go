// Package manifest parses a compose document's sibling lcp.toml and rewrites
// alias-relative call targets against it. It never touches the interpreter
// or registry directly: Parse and RewriteCallTarget are pure functions for a
// loader to apply before handing normalized steps to internal/compose.
// internal/runner reads the manifest but does not rewrite call targets.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is the typed shape of an lcp.toml file: an id of the form
// "lcod://<namespace>/<name>@<version>" and a workspace.scopeAliases table
// mapping short aliases to call targets within the same namespace.
type Manifest struct {
	ID        string    `toml:"id"`
	Workspace workspace `toml:"workspace"`

	namespace string
	version   string
}

type workspace struct {
	ScopeAliases map[string]string `toml:"scopeAliases"`
}

// Load reads and parses the lcp.toml at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw TOML bytes into a Manifest and splits its id into the
// namespace/version components RewriteCallTarget needs.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.ID != "" {
		namespace, version, err := splitID(m.ID)
		if err != nil {
			return nil, err
		}
		m.namespace = namespace
		m.version = version
	}
	return &m, nil
}

// splitID parses "lcod://<namespace>/<name>@<version>" into namespace and
// version, discarding the name segment (RewriteCallTarget supplies its own
// target name from the alias table, not from the manifest's own name).
func splitID(id string) (namespace, version string, err error) {
	const scheme = "lcod://"
	if !strings.HasPrefix(id, scheme) {
		return "", "", fmt.Errorf("manifest id %q: missing %q scheme", id, scheme)
	}
	rest := strings.TrimPrefix(id, scheme)
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", "", fmt.Errorf("manifest id %q: missing namespace/name separator", id)
	}
	namespace = rest[:slash]
	nameAndVersion := rest[slash+1:]
	at := strings.LastIndexByte(nameAndVersion, '@')
	if at < 0 {
		return "", "", fmt.Errorf("manifest id %q: missing @version suffix", id)
	}
	version = nameAndVersion[at+1:]
	if namespace == "" || version == "" {
		return "", "", fmt.Errorf("manifest id %q: empty namespace or version", id)
	}
	return namespace, version, nil
}

// RewriteCallTarget rewrites a raw call target of the form
// "./<alias>/<segments>" to "lcod://<namespace>/<target>/<segments>@<version>"
// using m's scopeAliases table. Absolute lcod:// URIs (and anything else
// that isn't "./"-prefixed) are returned unchanged, ok=false — the caller is
// not a rewrite candidate, not an error.
func (m *Manifest) RewriteCallTarget(raw string) (rewritten string, ok bool, err error) {
	if !strings.HasPrefix(raw, "./") {
		return raw, false, nil
	}
	if m.namespace == "" || m.version == "" {
		return "", false, fmt.Errorf("rewrite %q: manifest has no id to rewrite against", raw)
	}

	rest := strings.TrimPrefix(raw, "./")
	slash := strings.IndexByte(rest, '/')
	var alias, segments string
	if slash < 0 {
		alias = rest
	} else {
		alias = rest[:slash]
		segments = rest[slash+1:]
	}

	target, found := m.Workspace.ScopeAliases[alias]
	if !found {
		return "", false, fmt.Errorf("rewrite %q: no scope alias %q in manifest", raw, alias)
	}

	out := fmt.Sprintf("lcod://%s/%s", m.namespace, target)
	if segments != "" {
		out += "/" + segments
	}
	out += "@" + m.version
	return out, true, nil
}
