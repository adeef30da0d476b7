// Package access is the generic property access layer: Get, Set and Range
// dispatch for any instance and PropDef, independent of the concrete Go type
// behind the instance.
//
// Writes are validated and normalized before the native setter runs:
// values are converted to the property type, integers must be whole,
// numbers are clamped to the hard range, strings are truncated to their
// maximum length and enum identifiers are checked against the item list
// for the instance. Array writes are all-or-nothing. After a successful
// write every update callback of the property runs synchronously, in
// registration order.
package access
