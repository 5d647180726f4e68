// Package merge reconciles freshly fetched property values with the values
// already stored in the destination.
//
// Each property follows one of four behaviors from an immutable Policy:
// default (take fetched, even when empty), merge (union lists), preserve
// (take fetched only when non-empty), and skip (leave stored). Merge is pure
// so it can be exercised without network or store access. Diff reports what
// a merge would change.
package merge
