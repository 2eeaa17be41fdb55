// Package door implements the door controller.
//
// Each inbound TCP connection carries '#'-terminated commands. Commands run
// against the door's shared cell: a transition is started under the lock,
// the interim reply is sent, and the handler then waits on the cell until
// the physical twin completes the transition (or an emergency command
// preempts it). There are no transition timeouts.
package door
