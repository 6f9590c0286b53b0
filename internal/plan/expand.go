package plan

import (
	"alcyxob/plan-tracker/internal/domain"
	"fmt"
)

// Expand flattens a template into schedule entries. Days are numbered from 0
// across phases, weeks and days in declared order; workouts of a day keep
// their declared order. Every entry starts incomplete with no session.
func Expand(tmpl domain.PlanTemplate) ([]domain.ScheduleEntry, error) {
	var entries []domain.ScheduleEntry
	day := 0
	for _, phase := range tmpl.Phases {
		for wi, week := range phase.Weeks {
			for di, workouts := range week.Days {
				if len(workouts) == 0 {
					return nil, fmt.Errorf("%w: %s week %d day %d has no workouts",
						ErrInvalidTemplate, phase.Name, wi+1, di+1)
				}
				seen := make(map[string]struct{}, len(workouts))
				for _, workoutID := range workouts {
					if workoutID == "" {
						return nil, fmt.Errorf("%w: %s week %d day %d has an empty workout id",
							ErrInvalidTemplate, phase.Name, wi+1, di+1)
					}
					if _, dup := seen[workoutID]; dup {
						return nil, fmt.Errorf("%w: %s week %d day %d lists %q twice",
							ErrInvalidTemplate, phase.Name, wi+1, di+1, workoutID)
					}
					seen[workoutID] = struct{}{}
					entries = append(entries, domain.ScheduleEntry{
						Day:       day,
						WorkoutID: workoutID,
					})
				}
				day++
			}
		}
	}
	return entries, nil
}
