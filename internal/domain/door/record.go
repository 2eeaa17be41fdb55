package door

// Record is the door's shared cell payload.
type Record struct {
	// Status is the current door state.
	Status State
	// Emergency is the latched emergency override.
	Emergency Emergency
	// Transition numbers the latest transition started by the controller.
	Transition uint64
	// Completed is the latest transition the twin reported as finished.
	Completed uint64
}

// NewRecord returns the initial record: closed, no emergency.
func NewRecord() Record {
	return Record{Status: Closed}
}

// InFlight reports whether a started transition awaits the twin.
func (r *Record) InFlight() bool {
	return r.Status.Transitional() && r.Completed < r.Transition
}

// Step is the result of evaluating a command against the record.
type Step struct {
	// Done is false when the command must wait for an in-flight transition to settle.
	Done bool
	// Changed reports that the record was mutated and waiters must be woken.
	Changed bool
	// Reply is the final reply when no transition needs to be awaited.
	Reply string
	// Interim is sent to the client before awaiting Transition, if non-empty.
	Interim string
	// Transition is the transition the command must await, or zero.
	Transition uint64
}

// Begin evaluates cmd. The caller re-runs Begin after every cell change
// until Step.Done is set. STATE must be answered without Begin.
func (r *Record) Begin(cmd Command) Step {
	switch cmd {
	case CommandOpen:
		return r.beginNormal(cmd, Open, Closed, Opening)
	case CommandClose:
		return r.beginNormal(cmd, Closed, Open, Closing)
	case CommandOpenEmergency:
		return r.beginEmergency(cmd, EmergencyOpen, Open, Opening)
	case CommandCloseSecure:
		return r.beginEmergency(cmd, EmergencySecure, Closed, Closing)
	default:
		return Step{Done: true, Reply: ReplyInvalid}
	}
}

// beginNormal handles OPEN and CLOSE.
func (r *Record) beginNormal(cmd Command, target, from, moving State) Step {
	if r.Emergency != EmergencyNone {
		return Step{Done: true, Reply: r.Emergency.Reply()}
	}

	switch r.Status {
	case target:
		return Step{Done: true, Reply: ReplyAlready}
	case from:
		return Step{
			Done:       true,
			Changed:    true,
			Interim:    cmd.interimReply(),
			Transition: r.start(moving),
		}
	default:
		// Another transition is in flight.
		return Step{}
	}
}

// beginEmergency handles OPEN_EMERG and CLOSE_SECURE. Emergencies never wait:
// they latch, then either acknowledge, join a transition already heading to
// the target, or preempt one heading the other way.
func (r *Record) beginEmergency(cmd Command, latch Emergency, target, moving State) Step {
	latched := r.Emergency != latch
	r.Emergency = latch

	switch r.Status {
	case target:
		return Step{Done: true, Changed: latched, Reply: latch.Reply()}
	case moving:
		return Step{Done: true, Changed: latched, Transition: r.Transition}
	default:
		return Step{Done: true, Changed: true, Transition: r.start(moving)}
	}
}

// start begins a new transition and returns its number.
func (r *Record) start(moving State) uint64 {
	r.Transition++
	r.Status = moving

	return r.Transition
}

// Finish checks whether transition has settled. When the twin completed it,
// cmd gets its finished reply. When a newer transition preempted it, cmd gets
// the reply of the latch that preempted it. Finish never mutates the record.
func (r *Record) Finish(cmd Command, transition uint64) (reply string, done bool) {
	if r.Transition != transition {
		return r.Emergency.Reply(), true
	}

	if r.Completed < transition {
		return "", false
	}

	return cmd.finishedReply(), true
}

// Complete is the twin's completion signal: the in-flight transition settles
// into its stable target state. It reports false when nothing is moving.
func (r *Record) Complete() bool {
	if !r.InFlight() {
		return false
	}

	r.Completed = r.Transition
	r.Status = r.Status.Target()

	return true
}
