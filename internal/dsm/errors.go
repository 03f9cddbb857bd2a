package dsm

import "errors"

var (
	ErrPartitioned      = errors.New("network partition in effect")
	ErrQuorumNotReached = errors.New("quorum not reached")
	ErrUnavailable      = errors.New("replica unavailable")
	ErrAcksIncomplete   = errors.New("acknowledgments incomplete")
	ErrStopped          = errors.New("node stopped")
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPartitioned):
		return "partitioned"
	case errors.Is(err, ErrQuorumNotReached):
		return "quorum_not_reached"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrAcksIncomplete):
		return "acks_incomplete"
	case errors.Is(err, ErrStopped):
		return "stopped"
	default:
		return "error"
	}
}
