// Package ir is the content-identity layer: a closed set of JSON values,
// their canonical encoding, and the SHA-256 digests computed over it.
//
// Digests identify batches, merge inputs and merge outcomes. Two runs that
// see the same batches with the same settings share a run digest, and a
// deterministic merge reproduces the same result digest.
//
// Constraints:
//   - no floats; fractional quantities are stored as scaled integers
//   - no null; absent values are left out of the object
//   - object keys sorted by UTF-16 code units, strings NFC normalized
package ir
