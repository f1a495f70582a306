// Package layers implements the mission layers driven by the kernel.
//
// Every layer exposes the same lifecycle (Initialize, then one Execute
// operation) and keeps private, monotonically increasing counters. The kernel
// only reads those counters; the arithmetic behind each operation stays here.
package layers
