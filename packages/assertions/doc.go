// Package assertions compares values resolved from a response against
// expectations.
//
// Equality is strict: identical values pass, numeric kinds compare by value
// (an int 200 equals a JSON 200), and maps, slices and structs compare after
// a JSON round trip. A string never equals a number.
//
// Besides equality, Check supports the ordering, string, membership, length,
// type, each and JSON schema operators listed in Operator.
package assertions
