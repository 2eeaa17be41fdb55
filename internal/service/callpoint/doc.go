// Package callpoint implements a manual call point: while the twin holds it
// active, a FIRE datagram is sent to the fire alarm unit every resend delay.
package callpoint
