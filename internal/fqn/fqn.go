package fqn

import (
	"path/filepath"
	"strconv"
	"strings"
)

// FromPath derives a qualified name from a source path relative to its
// source root, the way JVM-style layouts map directories to packages.
// Examples:
//   - com/acme/Widget.java, "" → com.acme.Widget
//   - com/acme/Widget.java, "Inner" → com.acme.Widget.Inner
func FromPath(relPath, name string) string {
	relPath = strings.TrimSuffix(relPath, filepath.Ext(relPath))
	var parts []string
	for _, p := range strings.Split(filepath.ToSlash(relPath), "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	if name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, ".")
}

// Join returns pkg.name, or name alone for the default package.
func Join(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// Nested returns the qualified name of a class declared inside outer.
func Nested(outerQN, name string) string {
	return outerQN + "$" + name
}

// Anonymous returns the synthetic qualified name of the n-th anonymous class
// declared inside outer, e.g. com.acme.Widget$1.
func Anonymous(outerQN string, n int) string {
	return Nested(outerQN, strconv.Itoa(n))
}

// Prefix returns the package portion of a qualified name.
// e.g., "com.acme.Widget" → "com.acme"
func Prefix(qn string) string {
	if i := strings.LastIndexByte(qn, '.'); i >= 0 {
		return qn[:i]
	}
	return ""
}

// Short returns the last dotted segment of a qualified name.
func Short(qn string) string {
	return qn[strings.LastIndexByte(qn, '.')+1:]
}
