// Package terminal layers a pseudo-terminal over a stateless stub.
//
// The stub forgets everything between requests, so every command is sent
// inside a wrapper script that re-enters the tracked working directory,
// re-applies the session's environment, runs the command and then prints a
// sentinel-delimited trailer with the resulting directory:
//
//	cd '/var/www' 2>/dev/null
//	export LANG='C'
//	cd /tmp && pwd
//	echo
//	echo '__STUBTERM_01J...__'
//	pwd
//	echo '__STUBTERM_01J...__'
//
// The trailer is cut off before output is returned. A trailer that cannot be
// parsed leaves the previous directory in place and is reported as a
// StateDriftWarning instead of failing the command.
//
// States:
//
//	Uninitialized --bootstrap--> Ready <--> Executing
//	                               |
//	                             Close --> Closed
//
// A Session serializes its own commands. Cancelling a command's context stops
// the local wait only; the stub has already run it.
package terminal
