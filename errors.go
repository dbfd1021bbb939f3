package ringnet

// errors.go declares the errors the engine hands back to its caller.
// Every one of them is recoverable; the command that produced it leaves
// the engine in the state it had before the call.

import "errors"

var (
	ErrCapacity            = errors.New("ring is at maximum size")
	ErrMinimumSize         = errors.New("ring is at minimum size")
	ErrUnknownNode         = errors.New("no such node")
	ErrSameEndpoints       = errors.New("source and target are the same node")
	ErrSourceInactive      = errors.New("source node is inactive")
	ErrTargetInactive      = errors.New("target node is inactive")
	ErrNoPath              = errors.New("no viable path")
	ErrPathBroken          = errors.New("path broken")
	ErrAnimationInProgress = errors.New("packet in transit")
	ErrRingBroken          = errors.New("ring is broken")
	ErrInsufficientNodes   = errors.New("not enough active nodes")
	ErrLoadTestActive      = errors.New("load test already running")
	ErrLoadTestIdle        = errors.New("no load test running")
	ErrHealFailed          = errors.New("ring healing failed")
	ErrHealIncomplete      = errors.New("node restored but ring still broken")
	ErrBadParameter        = errors.New("bad parameter")
)

// ReportErrs folds the non-nil members of a list of errors into a single
// error, returning nil when there are none
func ReportErrs(errs []error) error {
	present := []error{}
	for _, err := range errs {
		if err != nil {
			present = append(present, err)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return errors.Join(present...)
}
