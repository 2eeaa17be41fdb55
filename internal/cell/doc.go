// Package cell implements the shared state record every field device owns.
//
// A Cell is a monitor: a mutex guarding a small value plus a change signal.
// Every read that drives a decision and every write happens with the lock
// held. Waiters capture the current change channel under the lock and sleep
// outside it; each change closes that channel and installs a fresh one, so a
// change can never slip between "check the condition" and "start waiting".
// Wakes only mean "something changed": waiters always re-check.
//
// The device process and its physical twin are the only two parties that
// touch a cell. The twin reaches it through the device's twin adapter, never
// through a raw pointer.
package cell
