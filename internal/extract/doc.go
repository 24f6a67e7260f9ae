// Package extract turns a condition key into feature values.
//
// A Context loads the region for the key's (patient, nodule, annotation),
// preprocesses the signal for the key's level count and noise scale, writes
// signal and mask as NRRD working files, and makes a single Engine call for
// every requested feature. The Engine is the external radiomics program;
// CommandEngine drives the pyradiomics command line.
package extract
