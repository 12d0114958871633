// Package providers contains the built-in wallet detectors and the shared
// injected detector they are built on.
//
// Each detector looks a provider object up by name in a core.Environment and
// only reports it when the provider's marker flag is set.
package providers
