// Package registry owns the registered shells and their live terminal
// sessions.
//
// The Manager is the single entry point the API layer talks to. Shells
// are persisted through a Store; terminal sessions live only in memory
// and must be re-created after a restart.
//
// Components:
//   - Manager: shell CRUD, terminal lifecycle and command execution
//   - Prober: connectivity checks, single and sweeping
//   - Seeder: loads shells from a YAML file on startup
//
// Concurrency:
//   - Operations on distinct shell ids never block each other
//   - Operations on one id are serialized by a per-id lock
//   - The session map lock is held only while a session is swapped in
//     or removed, never across a network call
//
// Example Usage:
//
//	mgr, err := registry.NewManager(registry.Options{Store: store, Profile: profile, Transport: transport})
//	id, err := mgr.AddNewShell(ctx, types.Shell{Location: "http://host/x.php", Type: types.ShellPosix})
//	info, err := mgr.CreateTerminal(ctx, id)
//	res, err := mgr.ExecuteCommand(ctx, id, "cd /tmp && pwd")
package registry
