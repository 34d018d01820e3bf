package formulation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Assignment is one staff member working one skill on one day.
type Assignment struct {
	Staff int `json:"staff"`
	Day   int `json:"day"`
	Skill int `json:"skill"`
}

// JobSchedule is the read-back of one job.
type JobSchedule struct {
	Job          int             `json:"job"`
	Name         string          `json:"name"`
	Completed    bool            `json:"completed"`
	Start        int             `json:"start"`
	End          int             `json:"end"`
	Duration     int             `json:"duration"`
	Lateness     int             `json:"lateness"`
	Contribution decimal.Decimal `json:"contribution"`
	Assignments  []Assignment    `json:"assignments"`
}

// Schedule is the read-back of a full solution.
type Schedule struct {
	Jobs   []JobSchedule   `json:"jobs"`
	Profit decimal.Decimal `json:"profit"`
}

// Extract reads a solution back into a Schedule and checks that the date
// variables agree with the assignments they were derived from.
func (f *Formulation) Extract(values []float64) (*Schedule, error) {
	if len(values) != f.Model.NumVars() {
		return nil, &ModelConstructionError{
			Op: "extract", Staff: -1, Day: -1, Skill: -1, Job: -1,
			Err: fmt.Errorf("%d values for %d variables", len(values), f.Model.NumVars()),
		}
	}
	inst := f.Instance
	d := f.Vars.Dims()
	s := &Schedule{Jobs: make([]JobSchedule, len(inst.Jobs)), Profit: decimal.Zero}

	for l, job := range inst.Jobs {
		js := JobSchedule{Job: l, Name: job.Name, Contribution: decimal.Zero, Assignments: []Assignment{}}

		c, err := f.Vars.Completion(l)
		if err != nil {
			return nil, err
		}
		js.Completed = values[c] > 0.5
		for field, dst := range map[DateField]*int{Start: &js.Start, End: &js.End, Duration: &js.Duration} {
			v, err := f.Vars.Date(l, field)
			if err != nil {
				return nil, err
			}
			*dst = int(math.Round(values[v]))
		}

		first, last := d.Horizon, -1
		for i := 0; i < d.Staff; i++ {
			for j := 0; j < d.Horizon; j++ {
				for k := 0; k < d.Skills; k++ {
					x, err := f.Vars.Assignment(i, j, k, l)
					if err != nil {
						return nil, err
					}
					if values[x] < 0.5 {
						continue
					}
					js.Assignments = append(js.Assignments, Assignment{Staff: i, Day: j, Skill: k})
					first, last = min(first, j), max(last, j)
				}
			}
		}

		if js.Completed {
			if js.Start != first || js.End != last || js.Duration != last-first+1 {
				return nil, jobError("extract", l, fmt.Errorf(
					"dates (%d, %d, %d) disagree with worked days [%d, %d]",
					js.Start, js.End, js.Duration, first, last))
			}
			js.Lateness = max(js.End-job.DueDate, 0)
			js.Contribution = job.Gain.Sub(job.DailyPenalty.Mul(decimal.NewFromInt(int64(js.Lateness))))
		} else if js.Start != 0 || js.End != d.Horizon+1 || js.Duration != 0 {
			return nil, jobError("extract", l, fmt.Errorf(
				"incomplete job has dates (%d, %d, %d)", js.Start, js.End, js.Duration))
		}

		s.Profit = s.Profit.Add(js.Contribution)
		s.Jobs[l] = js
	}
	return s, nil
}

// Completed returns the number of completed jobs.
func (s *Schedule) Completed() int {
	n := 0
	for _, js := range s.Jobs {
		if js.Completed {
			n++
		}
	}
	return n
}
