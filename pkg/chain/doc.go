// Package chain reconstructs a validated ancestry segment of an agent's
// source chain from a stream of activity records.
//
// The stream is a flat collection keyed by action hash. FilterIter walks it
// backward from a starting action, accepting a record as the next ancestor
// only when its sequence number is exactly one below the current record and
// its hash is the current record's declared previous action. Forked siblings
// are skipped; gaps and out-of-order records end the walk.
package chain
