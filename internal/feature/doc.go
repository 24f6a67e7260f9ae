// Package feature holds the static registry of computable texture features.
//
// The registry maps each public identifier ("glcm/JointAvg") to the
// extraction engine's feature class and internal name ("glcm",
// "JointAverage"). It is built once per process and is read-only afterwards;
// every lookup that fails produces an InvalidFeatureError naming the offender.
package feature
