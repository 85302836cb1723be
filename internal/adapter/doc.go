// Package adapter wraps the nmap process used to discover camera services.
//
// NmapScanner runs a scan against the configured targets and ports and
// writes the raw XML report to the scan directory. ParseReport turns such a
// report back into stream records, one per (address, port) pair, which
// become the store's working set.
//
// The nmap binary is reached through a RunnerFactory so the scan flow can
// be exercised without nmap installed.
package adapter
