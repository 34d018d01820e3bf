package instance

// =============================================================================
// VALIDATION - Invariants checked before any variable is created
// =============================================================================

// Validate checks every invariant of the instance and returns the first
// violation as a *ValidationError.
//
// Invariants:
//   - Horizon > 0
//   - Skill catalog entries are non-empty and unique
//   - Job and staff names are non-empty and unique
//   - Gain and daily penalty are >= 0
//   - Due date is in [0, Horizon]
//   - RequiredDays is non-empty, references catalog skills only, values >= 1
//   - Staff skills are catalog skills without duplicates
//   - Vacations are in [0, Horizon) without duplicates
func (in *Instance) Validate() error {
	if in.Horizon <= 0 {
		return invalid("horizon", -1, "must be positive, got %d", in.Horizon)
	}

	catalog := make(map[Skill]bool, len(in.Skills))
	for k, s := range in.Skills {
		if s == "" {
			return invalid("qualifications", k, "empty skill name")
		}
		if catalog[s] {
			return invalid("qualifications", k, "duplicate skill %q", s)
		}
		catalog[s] = true
	}

	if err := in.validateJobs(catalog); err != nil {
		return err
	}
	return in.validateStaff(catalog)
}

func (in *Instance) validateJobs(catalog map[Skill]bool) error {
	names := make(map[string]bool, len(in.Jobs))
	for l, job := range in.Jobs {
		if job.Name == "" {
			return invalid("jobs", l, "empty name")
		}
		if names[job.Name] {
			return invalid("jobs", l, "duplicate job name %q", job.Name)
		}
		names[job.Name] = true

		if job.Gain.IsNegative() {
			return invalid("jobs", l, "gain must be >= 0, got %s", job.Gain)
		}
		if job.DailyPenalty.IsNegative() {
			return invalid("jobs", l, "daily_penalty must be >= 0, got %s", job.DailyPenalty)
		}
		if job.DueDate < 0 || job.DueDate > in.Horizon {
			return invalid("jobs", l, "due_date %d outside [0, %d]", job.DueDate, in.Horizon)
		}
		if len(job.RequiredDays) == 0 {
			return invalid("jobs", l, "working_days_per_qualification is empty")
		}
		for skill, days := range job.RequiredDays {
			if !catalog[skill] {
				return invalid("jobs", l, "requires unknown skill %q", skill)
			}
			if days < 1 {
				return invalid("jobs", l, "requires %d days of %q, need >= 1", days, skill)
			}
		}
	}
	return nil
}

func (in *Instance) validateStaff(catalog map[Skill]bool) error {
	names := make(map[string]bool, len(in.Staff))
	for i, member := range in.Staff {
		if member.Name == "" {
			return invalid("staff", i, "empty name")
		}
		if names[member.Name] {
			return invalid("staff", i, "duplicate staff name %q", member.Name)
		}
		names[member.Name] = true

		held := make(map[Skill]bool, len(member.Skills))
		for _, skill := range member.Skills {
			if !catalog[skill] {
				return invalid("staff", i, "holds unknown skill %q", skill)
			}
			if held[skill] {
				return invalid("staff", i, "skill %q listed twice", skill)
			}
			held[skill] = true
		}

		off := make(map[int]bool, len(member.Vacations))
		for _, day := range member.Vacations {
			if day < 0 || day >= in.Horizon {
				return invalid("staff", i, "vacation day %d outside [0, %d)", day, in.Horizon)
			}
			if off[day] {
				return invalid("staff", i, "vacation day %d listed twice", day)
			}
			off[day] = true
		}
	}
	return nil
}
