// Package schema validates JSON documents against JSON Schema.
//
// The REST Countries schema is bundled into the binary; other schemas can be
// loaded from disk. Violations are aggregated into a single ValidationError
// that carries a JSON pointer for each one.
package schema
