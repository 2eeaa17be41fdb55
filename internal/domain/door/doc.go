// Package door contains the door controller's domain types.
//
// It defines the door State alphabet, the failure Mode announced to the
// overseer, the command and reply tokens of the door protocol and Record,
// the value stored in a door's shared cell. Record's Begin/Finish/Complete
// methods are the state machine: they are pure and expect to run with the
// cell lock held.
package door
