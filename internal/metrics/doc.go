// Package metrics derives the operational KPI set from a validated
// supply-chain snapshot: lead time, return rate, fill rate, inventory
// turnover, stockout risk and sales aggregates.
//
// The engine is pure. Everything it needs, including the as-of
// timestamp and the reporting period, arrives through Inputs. It never
// reads the clock or mutates its inputs, so running it twice on
// identical inputs produces an identical report.
//
// Every metric is a Measure, a tagged value distinguishing a computed
// number from "no data" (nothing eligible to compute, for example a
// zero denominator) and "failed" (a whole input kind was missing).
// Downstream consumers never have to guess whether a zero is real.
package metrics
