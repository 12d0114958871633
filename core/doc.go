// Package core reconciles wallet identity events into a single active public
// key. It owns the domain contracts, the subscription manager, the reconciler
// and its persistence adapter. Provider detectors and storage backends live in
// sibling packages and depend on core, never the other way around.
package core
