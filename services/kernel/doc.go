// Package kernel orchestrates the mission layers. A Kernel initializes every
// configured layer concurrently, deploys and syncs them, fans generated
// artifacts out for delivery, runs each layer's domain operation and finally
// aggregates the layer counters into a dashboard snapshot.
package kernel
