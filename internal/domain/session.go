package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultColumns seeds the table of a first-ever session.
var DefaultColumns = []string{"name", "sets", "reps", "weight"}

// Session is one logging attempt of a user at a workout.
// It is active while CompletedAt is nil and immutable afterwards.
type Session struct {
	ID          string     `bson:"_id" json:"id"`
	UserID      string     `bson:"userId" json:"userId"`
	WorkoutID   string     `bson:"workoutId" json:"workoutId"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt" json:"completedAt"`
	Columns     []string   `bson:"columns" json:"columns"`
	Rows        []Row      `bson:"rows" json:"rows"`
}

func (s *Session) IsActive() bool {
	return s.CompletedAt == nil
}

// Table returns a copy of the session's columns and rows.
func (s *Session) Table() Table {
	return Table{Columns: s.Columns, Rows: s.Rows}.Clone()
}

// Row is one line of a session table. Values are keyed by column name.
type Row struct {
	ID     string            `bson:"id" json:"id"`
	Values map[string]string `bson:"values" json:"values"`
}

// Value returns the cell for column, "" when unset.
func (r Row) Value(column string) string {
	return r.Values[column]
}

// Table is the editable part of a session: ordered, unique columns and
// ordered rows.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewDefaultTable returns the table used when no earlier session exists.
func NewDefaultTable() Table {
	return Table{
		Columns: append([]string(nil), DefaultColumns...),
		Rows:    []Row{},
	}
}

// Clone deep-copies the table so the result shares no maps or slices.
func (t Table) Clone() Table {
	out := Table{
		Columns: make([]string, len(t.Columns)),
		Rows:    make([]Row, len(t.Rows)),
	}
	copy(out.Columns, t.Columns)
	for i, r := range t.Rows {
		values := make(map[string]string, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		out.Rows[i] = Row{ID: r.ID, Values: values}
	}
	return out
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends name unless it is empty or already present (exact match).
func (t *Table) AddColumn(name string) bool {
	if name == "" || t.HasColumn(name) {
		return false
	}
	t.Columns = append(t.Columns, name)
	return true
}

// AddRow appends an empty row with a fresh ID and returns it.
func (t *Table) AddRow() Row {
	row := Row{
		ID:     "row_" + uuid.NewString(),
		Values: map[string]string{},
	}
	t.Rows = append(t.Rows, row)
	return row
}

// UpdateCell sets a value on the row with rowID. Unknown rows are ignored.
func (t *Table) UpdateCell(rowID, column, value string) bool {
	for i := range t.Rows {
		if t.Rows[i].ID != rowID {
			continue
		}
		if t.Rows[i].Values == nil {
			t.Rows[i].Values = map[string]string{}
		}
		t.Rows[i].Values[column] = value
		return true
	}
	return false
}

// DeleteColumn removes the column and its value from every row.
func (t *Table) DeleteColumn(name string) {
	cols := t.Columns[:0]
	for _, c := range t.Columns {
		if c != name {
			cols = append(cols, c)
		}
	}
	t.Columns = cols
	for i := range t.Rows {
		delete(t.Rows[i].Values, name)
	}
}

func (t *Table) DeleteRow(rowID string) {
	rows := t.Rows[:0]
	for _, r := range t.Rows {
		if r.ID != rowID {
			rows = append(rows, r)
		}
	}
	t.Rows = rows
}
