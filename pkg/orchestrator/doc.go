// Package orchestrator wires the loader, the form compiler and the renderer
// registry into a single Generate call for consumers that prefer one entry
// point.
package orchestrator
