// Package types defines the record model shared by the sourcechain packages:
// content hashes, chain actions, activity records, chain filters, and the
// Store interface that storage backends implement, together with the
// standard sentinel errors.
package types
