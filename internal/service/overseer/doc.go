// Package overseer implements the central authority: it records the doors,
// card readers and fire alarm unit that announce themselves, decides card
// scans against the authorization policy, cycles authorised doors and
// registers fail-safe doors with the fire alarm unit.
package overseer
