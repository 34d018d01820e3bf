package instance

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"
)

// GeneratorParams sizes a random instance.
type GeneratorParams struct {
	Skills  int
	Staff   int
	Jobs    int
	Horizon int
}

// Generate builds a random valid instance. Gains are drawn from [10, 30],
// daily penalties from [1, 5], skill-day requirements from [1, 3] and due
// dates from [1, Horizon].
func Generate(p GeneratorParams, rng *rand.Rand) (*Instance, error) {
	if p.Skills <= 0 || p.Staff < 0 || p.Jobs < 0 {
		return nil, invalid("generator", -1, "need at least one skill and non-negative staff/job counts")
	}

	skills := make([]Skill, p.Skills)
	for k := range skills {
		skills[k] = Skill(fmt.Sprintf("Skill%d", k+1))
	}

	jobs := make([]Job, p.Jobs)
	for l := range jobs {
		req := map[Skill]int{}
		for _, k := range sample(rng, p.Skills, 1+rng.Intn(p.Skills)) {
			req[skills[k]] = 1 + rng.Intn(3)
		}
		due := p.Horizon
		if p.Horizon > 0 {
			due = 1 + rng.Intn(p.Horizon)
		}
		jobs[l] = Job{
			Name:         fmt.Sprintf("Job%d", l+1),
			Gain:         decimal.NewFromInt(int64(10 + rng.Intn(21))),
			DailyPenalty: decimal.NewFromInt(int64(1 + rng.Intn(5))),
			DueDate:      due,
			RequiredDays: req,
		}
	}

	staff := make([]StaffMember, p.Staff)
	for i := range staff {
		held := sample(rng, p.Skills, 1+rng.Intn(p.Skills))
		sort.Ints(held)
		memberSkills := make([]Skill, len(held))
		for n, k := range held {
			memberSkills[n] = skills[k]
		}
		vacations := []int{}
		if p.Horizon > 0 {
			vacations = sample(rng, p.Horizon, rng.Intn(p.Horizon+1)/2)
			sort.Ints(vacations)
		}
		staff[i] = StaffMember{
			Name:      fmt.Sprintf("Person%d", i+1),
			Skills:    memberSkills,
			Vacations: vacations,
		}
	}

	return New(p.Horizon, skills, jobs, staff)
}

// sample draws k distinct values from [0, n).
func sample(rng *rand.Rand, n, k int) []int {
	perm := rng.Perm(n)
	if k > n {
		k = n
	}
	return append([]int{}, perm[:k]...)
}
