// Package fields projects records down to the fields a role may see.
//
// A [Policy] maps roles to ordered field lists, with [Wildcard] granting
// everything. Projections never fail for an unknown role: such a role sees
// an empty record.
//
// # What this package must NOT do
//
//   - Decide whether a role may load a record at all (see guard).
//   - Mask or transform values; fields are kept or dropped.
package fields
