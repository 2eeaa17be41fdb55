package access

import "slices"

// Policy maps card codes to the doors they open and card readers to the
// door they are mounted on.
type Policy struct {
	// Authorizations lists, per card code, the door ids the code may open.
	Authorizations map[string][]int
	// Connections maps a card reader id to its door id.
	Connections map[int]int
}

// DoorFor returns the door the reader is connected to.
func (p Policy) DoorFor(readerID int) (int, bool) {
	doorID, ok := p.Connections[readerID]

	return doorID, ok
}

// Decide allows the scan iff the reader is connected to a door and code is
// authorised for that door.
func (p Policy) Decide(readerID int, code string) Verdict {
	doorID, ok := p.DoorFor(readerID)
	if !ok {
		return Denied
	}

	if slices.Contains(p.Authorizations[code], doorID) {
		return Allowed
	}

	return Denied
}
