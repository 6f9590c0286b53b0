package domain

import "time"

// PlanTemplate is a static, multi-phase plan declaration.
// Phases, weeks and days are ordered; a day lists the workout IDs
// performed on it.
type PlanTemplate struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name" json:"name"`
	Phases []Phase `yaml:"phases" json:"phases"`
}

type Phase struct {
	Name  string `yaml:"name" json:"name"`
	Weeks []Week `yaml:"weeks" json:"weeks"`
}

type Week struct {
	Name string    `yaml:"name,omitempty" json:"name,omitempty"`
	Days []DayPlan `yaml:"days" json:"days"`
}

// DayPlan is one day of a template: the workout IDs scheduled for it.
type DayPlan []string

// ScheduleEntry is one (day, workout) unit of a user's schedule.
type ScheduleEntry struct {
	Day       int    `bson:"day" json:"day"`
	WorkoutID string `bson:"workoutId" json:"workoutId"`
	Completed bool   `bson:"completed" json:"completed"`
	SessionID string `bson:"sessionId,omitempty" json:"sessionId,omitempty"` // Finalized session, empty until completed
}

// UserPlanState is the persisted schedule of one user. The document ID is the user ID.
type UserPlanState struct {
	UserID    string          `bson:"_id" json:"userId"`
	PlanID    string          `bson:"planId" json:"planId"`
	Entries   []ScheduleEntry `bson:"entries" json:"entries"`
	StartedAt time.Time       `bson:"startedAt" json:"startedAt"`
	UpdatedAt time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// DayGroup holds the entries of a single plan day, in schedule order.
type DayGroup struct {
	Day     int             `json:"day"`
	Entries []ScheduleEntry `json:"entries"`
}

// ScheduleView is the read model of a plan. It is derived on every read.
type ScheduleView struct {
	PlanID     string     `json:"planId"`
	CurrentDay int        `json:"currentDay"`
	Finished   bool       `json:"finished"`
	Past       []DayGroup `json:"past"`
	Today      *DayGroup  `json:"today,omitempty"`
	Upcoming   []DayGroup `json:"upcoming"`
}
