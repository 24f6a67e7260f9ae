// Package model provides the value types shared by every radcache package.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - ConditionKey is a plain comparable value; equality is field equality
//   - Patient identifiers are NFC-normalized before they reach storage
//   - FeatureID column mangling is bijective over well-formed identifiers
//   - AnnotationID -1 is reserved for the consensus delineation
package model
