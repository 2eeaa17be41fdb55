// Package tempsensor implements a temperature sensor gossip node.
//
// A sensor originates a reading on its first iteration, whenever the twin
// changes the temperature and whenever the keepalive interval passes without
// a send. Readings received from peers are relayed with the sensor appended
// to the hop path, to every configured receiver not already on that path.
// Each iteration originates if due, drains the inbox, then waits for a
// temperature change for at most the configured ceiling.
package tempsensor
