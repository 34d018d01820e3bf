package formulation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelConstruction marks internal inconsistencies while wiring the
// model. It indicates a defect, not bad input.
var ErrModelConstruction = errors.New("model construction failed")

// ModelConstructionError carries the indices being wired when the failure
// happened. Indices that do not apply are -1.
type ModelConstructionError struct {
	Op    string
	Staff int
	Day   int
	Skill int
	Job   int
	Err   error
}

func (e *ModelConstructionError) Error() string {
	var idx []string
	for _, p := range []struct {
		name string
		v    int
	}{{"staff", e.Staff}, {"day", e.Day}, {"skill", e.Skill}, {"job", e.Job}} {
		if p.v >= 0 {
			idx = append(idx, fmt.Sprintf("%s=%d", p.name, p.v))
		}
	}
	msg := "model construction: " + e.Op
	if len(idx) > 0 {
		msg += " (" + strings.Join(idx, " ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelConstructionError) Unwrap() error { return e.Err }

func (e *ModelConstructionError) Is(target error) bool {
	return target == ErrModelConstruction
}

func jobError(op string, job int, err error) error {
	if err == nil {
		return nil
	}
	var mce *ModelConstructionError
	if errors.As(err, &mce) {
		return err
	}
	return &ModelConstructionError{Op: op, Staff: -1, Day: -1, Skill: -1, Job: job, Err: err}
}
