// Package commands defines the walletctl CLI and wires its dependencies.
//
// Commands
//
//   - replay   Run a JSONL event script against fake wallets and print the result
//   - show     Print the persisted active identity
//   - clear    Remove the persisted active identity
//   - history  List committed identity changes (sql stores only)
//
// # Implementation
//
// The root command opens the selected key/value backend before any
// subcommand runs. The sql backends apply the embedded migrations on open and
// expose the identity change journal, which replay registers as a change hook.
package commands
