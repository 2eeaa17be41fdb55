// Package cardreader implements the card reader controller.
//
// The physical twin writes a scanned code into the reader's cell. The reader
// asks the Overseer for a verdict over a fresh connection, publishes it in the
// cell, clears the code and waits for the next scan.
package cardreader
