// Package hashing computes content fingerprints for duplicate detection.
//
// The partial hash samples the head and tail of a file plus its size, giving
// constant I/O cost; the full hash covers the whole file and is reserved for
// confirming partial-hash collisions.
package hashing
