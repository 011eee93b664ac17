// Package discovery orchestrates discovery runs.
//
// A run collects from every source adapter, aggregates the results into a
// ranked opportunity list, persists merged products, exports a snapshot and
// records run history. Only one run executes at a time across all replicas.
//
// Repository implementations live in repository/postgres/ and repository/memory/;
// snapshot and history backends live in storage/.
package discovery
