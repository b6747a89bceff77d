// Package validation turns raw ingested records into typed domain
// records, partitioning every batch into accepted and rejected rows.
//
// Checks run in a fixed order per record and short-circuit at the
// first failure: required fields and type coercion, then value
// ranges, then referential integrity (Return -> Order, using a
// lookup supplied once the order batch is known). Presence and
// coercion are checked together per field, walking fields in their
// declaration order, so the reported reason belongs to the first
// failing field rather than the first failing check category: a
// record with a missing quantity and an unparseable order_date is
// rejected for the order_date. A bad record never aborts the rest
// of its batch, and every rejection carries a stable reason code so
// downstream summaries can aggregate without parsing messages.
//
// The partition is exhaustive and disjoint: for any input batch,
// len(valid) + len(rejected) == len(input).
package validation
