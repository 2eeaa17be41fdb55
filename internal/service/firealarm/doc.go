// Package firealarm implements the fire alarm unit.
//
// The unit listens for datagrams: FIRE from manual call points, TEMP from the
// temperature sensor network and DOOR registrations relayed by the Overseer.
// A FIRE datagram, or enough threshold readings within the detection period,
// latches the alarm and sends OPEN_EMERG to every registered door. Doors that
// register after the latch fired get OPEN_EMERG immediately.
package firealarm
