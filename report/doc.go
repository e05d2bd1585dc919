// Package report defines the stable boundary types for validation output.
//
// These structs are the only types intended for direct JSON or CBOR
// serialization by consumers. The canonical JSON form (RFC 8785) and its CID
// identify a report independently of field order or whitespace.
package report
