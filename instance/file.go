/*
file.go - JSON file format for instances

FORMAT:
  {
    "horizon": 5,
    "qualifications": ["A", "B"],
    "jobs": [
      {"name": "Job1", "gain": 20, "daily_penalty": 3, "due_date": 3,
       "working_days_per_qualification": {"A": 2}}
    ],
    "staff": [
      {"name": "Olivia", "qualifications": ["A"], "vacations": [0]}
    ]
  }

  Day indices follow the package convention (0-based, vacations in
  [0, horizon), due dates in [0, horizon]).

ROUND TRIP:
  Marshal always emits arrays (never null) and Parse always yields non-nil
  slices, so Parse(Marshal(inst)) is identical to inst for any parsed inst.
  Gains and penalties are read and written as decimal literals, never
  through float64, so every digit survives.
*/
package instance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// File is the JSON representation of an Instance.
type File struct {
	Horizon        int         `json:"horizon"`
	Qualifications []string    `json:"qualifications"`
	Jobs           []JobJSON   `json:"jobs"`
	Staff          []StaffJSON `json:"staff"`
}

// JobJSON is the JSON representation of a Job.
type JobJSON struct {
	Name                        string         `json:"name"`
	Gain                        json.Number    `json:"gain"`
	DailyPenalty                json.Number    `json:"daily_penalty"`
	DueDate                     int            `json:"due_date"`
	WorkingDaysPerQualification map[string]int `json:"working_days_per_qualification"`
}

// StaffJSON is the JSON representation of a StaffMember.
type StaffJSON struct {
	Name           string   `json:"name"`
	Qualifications []string `json:"qualifications"`
	Vacations      []int    `json:"vacations"`
}

// =============================================================================
// PARSE / MARSHAL
// =============================================================================

// Parse decodes and validates an instance file.
func Parse(data []byte) (*Instance, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstance, err)
	}
	inst, err := f.toInstance()
	if err != nil {
		return nil, err
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Marshal encodes an instance in the file format.
func Marshal(inst *Instance) ([]byte, error) {
	return json.MarshalIndent(fromInstance(inst), "", "  ")
}

// Load reads and parses an instance file.
func Load(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance: %w", err)
	}
	return Parse(data)
}

// Save writes an instance file.
func Save(path string, inst *Instance) error {
	data, err := Marshal(inst)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (f File) toInstance() (*Instance, error) {
	inst := &Instance{
		Horizon: f.Horizon,
		Skills:  make([]Skill, len(f.Qualifications)),
		Jobs:    make([]Job, len(f.Jobs)),
		Staff:   make([]StaffMember, len(f.Staff)),
	}
	for k, q := range f.Qualifications {
		inst.Skills[k] = Skill(q)
	}
	for l, j := range f.Jobs {
		req := make(map[Skill]int, len(j.WorkingDaysPerQualification))
		for s, d := range j.WorkingDaysPerQualification {
			req[Skill(s)] = d
		}
		gain, err := parseAmount(j.Gain)
		if err != nil {
			return nil, invalid("jobs", l, "gain: %v", err)
		}
		penalty, err := parseAmount(j.DailyPenalty)
		if err != nil {
			return nil, invalid("jobs", l, "daily_penalty: %v", err)
		}
		inst.Jobs[l] = Job{
			Name:         j.Name,
			Gain:         gain,
			DailyPenalty: penalty,
			DueDate:      j.DueDate,
			RequiredDays: req,
		}
	}
	for i, s := range f.Staff {
		skills := make([]Skill, len(s.Qualifications))
		for k, q := range s.Qualifications {
			skills[k] = Skill(q)
		}
		vacations := make([]int, len(s.Vacations))
		copy(vacations, s.Vacations)
		inst.Staff[i] = StaffMember{Name: s.Name, Skills: skills, Vacations: vacations}
	}
	return inst, nil
}

// parseAmount reads a JSON number literal exactly. A missing amount is 0.
func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		n = "0"
	}
	return decimal.NewFromString(n.String())
}

func fromInstance(inst *Instance) File {
	f := File{
		Horizon:        inst.Horizon,
		Qualifications: make([]string, len(inst.Skills)),
		Jobs:           make([]JobJSON, len(inst.Jobs)),
		Staff:          make([]StaffJSON, len(inst.Staff)),
	}
	for k, s := range inst.Skills {
		f.Qualifications[k] = string(s)
	}
	for l, j := range inst.Jobs {
		req := make(map[string]int, len(j.RequiredDays))
		for s, d := range j.RequiredDays {
			req[string(s)] = d
		}
		f.Jobs[l] = JobJSON{
			Name:                        j.Name,
			Gain:                        json.Number(j.Gain.String()),
			DailyPenalty:                json.Number(j.DailyPenalty.String()),
			DueDate:                     j.DueDate,
			WorkingDaysPerQualification: req,
		}
	}
	for i, s := range inst.Staff {
		quals := make([]string, len(s.Skills))
		for k, q := range s.Skills {
			quals[k] = string(q)
		}
		vacations := make([]int, len(s.Vacations))
		copy(vacations, s.Vacations)
		f.Staff[i] = StaffJSON{Name: s.Name, Qualifications: quals, Vacations: vacations}
	}
	return f
}
