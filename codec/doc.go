// Package codec provides the lossless, reversible transform between live
// runtime state trees and JSON-safe trees.
//
// # Representable values
//
// Encode and Decode are mutual inverses for scalars, ordered sequences,
// mappings with string-coercible keys, KeyedMap containers, UniqueSet
// containers, and nested combinations of all of these. Two intentional
// asymmetries exist:
//
//   - Map keys are coerced to their string form during encoding. Numeric or
//     composite keys do not round-trip; they come back as strings.
//   - Date values (time.Time) pass through encoding as opaque leaves and are
//     serialized by the JSON layer in its native form. Decode cannot
//     distinguish a date-shaped value from a plain string, so dates arrive
//     back as whatever the JSON layer produced.
//
// # Sentinel markers
//
// Extended containers are tagged by field presence, not type metadata:
//
//	KeyedMap  → {"~map": true, "entries": {…}}
//	UniqueSet → {"~set": true, "values": […]}
//
// The sentinel fields "~map" and "~set" are reserved. A plain mapping that
// legitimately contains one of them alongside the matching payload field will
// be misdecoded as a container; applications must not use these field names
// in their own state.
//
// # Failure behavior
//
// Encoding or decoding never fails its caller. Any problem during traversal —
// a cyclic tree, an unsupported value type, a malformed sentinel object —
// degrades to returning that subtree unconverted, and the failure is reported
// to the observability sink (structured log plus an optional Prometheus
// counter). The surrounding operation continues.
package codec
