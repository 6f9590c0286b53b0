package plan

import (
	"alcyxob/plan-tracker/internal/domain"
	"sort"
)

// CurrentDayIndex returns the lowest day that still has an incomplete entry.
// When everything is complete it returns one past the last day, which marks
// the plan as finished.
func CurrentDayIndex(entries []domain.ScheduleEntry) int {
	current, maxDay := -1, -1
	for _, e := range entries {
		if e.Day > maxDay {
			maxDay = e.Day
		}
		if !e.Completed && (current == -1 || e.Day < current) {
			current = e.Day
		}
	}
	if current == -1 {
		return maxDay + 1
	}
	return current
}

// GroupByDay groups entries by ascending day. Entries of one day keep their
// relative order.
func GroupByDay(entries []domain.ScheduleEntry) []domain.DayGroup {
	byDay := make(map[int]int)
	var groups []domain.DayGroup
	for _, e := range entries {
		idx, ok := byDay[e.Day]
		if !ok {
			idx = len(groups)
			byDay[e.Day] = idx
			groups = append(groups, domain.DayGroup{Day: e.Day})
		}
		groups[idx].Entries = append(groups[idx].Entries, e)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Day < groups[j].Day
	})
	return groups
}

// BuildView splits the grouped schedule around the current day.
func BuildView(state domain.UserPlanState) domain.ScheduleView {
	current := CurrentDayIndex(state.Entries)
	view := domain.ScheduleView{
		PlanID:     state.PlanID,
		CurrentDay: current,
		Past:       []domain.DayGroup{},
		Upcoming:   []domain.DayGroup{},
	}
	for _, g := range GroupByDay(state.Entries) {
		switch {
		case g.Day < current:
			view.Past = append(view.Past, g)
		case g.Day == current:
			g := g
			view.Today = &g
		default:
			view.Upcoming = append(view.Upcoming, g)
		}
	}
	view.Finished = view.Today == nil && len(view.Upcoming) == 0
	return view
}

// FindEntry returns the index of the (day, workoutID) entry or -1.
func FindEntry(entries []domain.ScheduleEntry, day int, workoutID string) int {
	for i, e := range entries {
		if e.Day == day && e.WorkoutID == workoutID {
			return i
		}
	}
	return -1
}
