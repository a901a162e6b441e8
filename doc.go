// Package cbgains computes realized gains and losses from a Coinbase
// transactions export. It is designed to be local-first and auditable: every
// number in a report can be traced back to the export rows and the exchange
// rate quotes that produced it.
//
// The core functionalities include:
//   - Export Parsing: Decoding the raw transactions export into validated,
//     time-ordered transactions, accumulating row-level errors and
//     consistency warnings instead of failing on imperfect files.
//   - Lot Matching: A first-in first-out engine that consumes prior
//     acquisitions to compute the realized gain or loss of every disposal,
//     keeping per-lot allocations for audit.
//   - Exchange Rates: A pluggable rate provider with a disk-cached table fed
//     by the public spot price endpoint, so reports in a non-USD currency
//     run offline once the needed days are cached.
//   - Reporting: Aggregating transactions into display groups and per-year
//     realized gain tables, ready for rendering.
//
// This package serves as the foundational logic for the `cbg` command-line
// tool.
package cbgains
