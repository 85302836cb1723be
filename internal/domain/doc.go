// Package domain defines the core types shared by every camscout component.
//
// Stream is the single record the whole pipeline revolves around: the mapper
// creates it, the attacks fill in credentials and route, the thumbnail and
// validation stages annotate it, and the report serializes it.
//
// # Identity
//
// A stream is identified by its (address, port) Key. Stores never hold two
// streams with the same key, and updates merge by key.
//
// # Working sets
//
// IsOpenRTSP selects the records worth attacking (service "rtsp", state
// "open"). IsValid further requires both credentials and route to be known;
// only valid streams are thumbnailed, validated and reported.
//
// # Design Principles
//
// - Value semantics: With* helpers return modified copies
// - No database or external dependencies
package domain
