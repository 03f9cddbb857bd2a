package correlator

type State int32

const (
	Issued State = iota
	Satisfied
	Retrying
	Exhausted
)

func (s State) String() string {
	switch s {
	case Issued:
		return "Issued"
	case Satisfied:
		return "Satisfied"
	case Retrying:
		return "Retrying"
	case Exhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

func (s State) Terminal() bool {
	return s == Satisfied || s == Exhausted
}
