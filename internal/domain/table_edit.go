package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownTableEdit = errors.New("unknown table edit")

type TableEditOp string

const (
	EditAddColumn    TableEditOp = "addColumn"
	EditAddRow       TableEditOp = "addRow"
	EditUpdateCell   TableEditOp = "updateCell"
	EditDeleteColumn TableEditOp = "deleteColumn"
	EditDeleteRow    TableEditOp = "deleteRow"
)

// TableEdit is one table primitive, as sent by an editing client.
type TableEdit struct {
	Op     TableEditOp `json:"op"`
	Name   string      `json:"name,omitempty"`   // addColumn, deleteColumn
	RowID  string      `json:"rowId,omitempty"`  // updateCell, deleteRow
	Column string      `json:"column,omitempty"` // updateCell
	Value  string      `json:"value,omitempty"`  // updateCell
}

// Apply runs a single edit against the table.
func (t *Table) Apply(e TableEdit) error {
	switch e.Op {
	case EditAddColumn:
		t.AddColumn(e.Name)
	case EditAddRow:
		t.AddRow()
	case EditUpdateCell:
		t.UpdateCell(e.RowID, e.Column, e.Value)
	case EditDeleteColumn:
		t.DeleteColumn(e.Name)
	case EditDeleteRow:
		t.DeleteRow(e.RowID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTableEdit, e.Op)
	}
	return nil
}
