package model

import (
	"fmt"
	"strings"
)

// FeatureSeparator splits a feature identifier into class and short name.
const FeatureSeparator = "/"

// columnSeparator replaces FeatureSeparator in persisted column names.
const columnSeparator = "_"

// FeatureID names one texture descriptor as "<class>/<short name>",
// e.g. "firstorder/Entropy".
type FeatureID string

// Class returns the part before the separator.
func (f FeatureID) Class() string {
	class, _, _ := strings.Cut(string(f), FeatureSeparator)
	return class
}

// Name returns the part after the separator.
func (f FeatureID) Name() string {
	_, name, _ := strings.Cut(string(f), FeatureSeparator)
	return name
}

// Valid reports whether f has exactly one separator and both parts are
// non-empty ASCII alphanumerics. Only valid identifiers can be mangled
// into column names.
func (f FeatureID) Valid() bool {
	class, name, ok := strings.Cut(string(f), FeatureSeparator)
	return ok && isAlnum(class) && isAlnum(name)
}

// Column returns the persisted column name for f.
func (f FeatureID) Column() (string, error) {
	if !f.Valid() {
		return "", fmt.Errorf("malformed feature identifier %q", string(f))
	}
	return strings.Replace(string(f), FeatureSeparator, columnSeparator, 1), nil
}

// FeatureIDFromColumn inverts FeatureID.Column.
func FeatureIDFromColumn(column string) (FeatureID, error) {
	id := FeatureID(strings.Replace(column, columnSeparator, FeatureSeparator, 1))
	if !id.Valid() {
		return "", fmt.Errorf("column %q is not a feature column", column)
	}
	return id, nil
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
