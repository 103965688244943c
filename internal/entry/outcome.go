package entry

// Status is the completion state of a scan.
type Status uint8

const (
	StatusComplete Status = iota // no failures
	StatusPartial                // soft failures occurred
	StatusAborted                // a fatal failure stopped the scan
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	default:
		return "aborted"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) Status {
	switch s {
	case "complete":
		return StatusComplete
	case "partial":
		return StatusPartial
	default:
		return StatusAborted
	}
}

// Outcome is reported to the sink once the scan ends.
type Outcome struct {
	Root   string
	Status Status
	Errors int64 // soft failures reported
	Err    error // fatal error, nil unless Status is StatusAborted
}

// Fatal reports whether the scan was aborted.
func (o Outcome) Fatal() bool {
	return o.Status == StatusAborted
}

// Action tells the host process what to do after a scan.
type Action uint8

const (
	ActionContinue Action = iota
	ActionTerminate
)

func (a Action) String() string {
	if a == ActionTerminate {
		return "terminate"
	}
	return "continue"
}
