// Package columns derives the file table's columns and row actions from a
// ViewConfig.
package columns

import (
	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/constants"
)

// Column types understood by renderers
const (
	TypeText        = "text"
	TypeFilePreview = "navigateFilePreview"
	TypeURL         = "url"
	TypeAction      = "action"
)

// Column describes one table column. Order in a slice is display order.
type Column struct {
	Label          string          `json:"label,omitempty"`
	FieldName      string          `json:"fieldName,omitempty"`
	Type           string          `json:"type"`
	InitialWidth   int             `json:"initialWidth,omitempty"`
	TypeAttributes *TypeAttributes `json:"typeAttributes,omitempty"`
}

// TypeAttributes carries the per-type settings of a column.
type TypeAttributes struct {
	// LabelField names the record field shown as link text
	LabelField string `json:"labelField,omitempty"`
	// TargetField names the record field used as navigation target
	TargetField string `json:"targetField,omitempty"`

	RowActions    []Action `json:"rowActions,omitempty"`
	MenuAlignment string   `json:"menuAlignment,omitempty"`
}

// Action is one entry of the row action menu.
type Action struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}

// Build returns the columns for cfg. Every call allocates fresh values, so
// equal configs always yield equal, independent slices.
func Build(cfg config.ViewConfig) []Column {
	cols := make([]Column, 0, 6)
	cols = append(cols, fileNameColumn(cfg))

	if cfg.ShowOwnerName {
		if cfg.IsCommunity {
			cols = append(cols, Column{Label: "Owner Name", FieldName: "ownerName", Type: TypeText, InitialWidth: 180})
		} else {
			cols = append(cols, Column{
				Label:          "Owner Name",
				FieldName:      "ownerUrl",
				Type:           TypeURL,
				InitialWidth:   180,
				TypeAttributes: &TypeAttributes{LabelField: "ownerName"},
			})
		}
	}
	if cfg.ShowFileType {
		cols = append(cols, Column{Label: "File Type", FieldName: "fileType", Type: TypeText, InitialWidth: 120})
	}
	if cfg.ShowFileSize {
		cols = append(cols, Column{Label: "File Size", FieldName: "fileSize", Type: TypeText, InitialWidth: 120})
	}
	if cfg.ShowLastModified {
		cols = append(cols, Column{Label: "Last Modified", FieldName: "formattedLastModifiedDate", Type: TypeText, InitialWidth: 180})
	}

	if actions := RowActions(cfg); len(actions) > 0 {
		cols = append(cols, Column{
			Type:         TypeAction,
			InitialWidth: 80,
			TypeAttributes: &TypeAttributes{
				RowActions:    actions,
				MenuAlignment: "auto",
			},
		})
	}
	return cols
}

// RowActions returns the row menu entries enabled by cfg, in menu order.
func RowActions(cfg config.ViewConfig) []Action {
	var actions []Action
	if cfg.AllowPreview {
		actions = append(actions, Action{Label: "View", Name: constants.ActionView})
	}
	if cfg.AllowFileEditDetail {
		actions = append(actions, Action{Label: "Edit File Details", Name: constants.ActionEdit})
	}
	if cfg.AllowRemove {
		actions = append(actions, Action{Label: "Remove from Record", Name: constants.ActionRemoveFromRecord})
	}
	return actions
}

func fileNameColumn(cfg config.ViewConfig) Column {
	if !cfg.IsCommunity && cfg.AllowPreview {
		return Column{
			Label:     "File Name",
			FieldName: "fileName",
			Type:      TypeFilePreview,
			TypeAttributes: &TypeAttributes{
				LabelField:  "fileName",
				TargetField: "contentDocumentId",
			},
		}
	}
	return Column{Label: "File Name", FieldName: "fileName", Type: TypeText}
}

// ActionColumn returns the trailing action column of cols, if any.
func ActionColumn(cols []Column) (Column, bool) {
	if len(cols) == 0 {
		return Column{}, false
	}
	last := cols[len(cols)-1]
	if last.Type != TypeAction {
		return Column{}, false
	}
	return last, true
}

// Clone returns a deep copy of cols, including type attributes and their
// row actions.
func Clone(cols []Column) []Column {
	if cols == nil {
		return nil
	}
	out := make([]Column, len(cols))
	for i, c := range cols {
		if c.TypeAttributes != nil {
			attrs := *c.TypeAttributes
			attrs.RowActions = append([]Action(nil), c.TypeAttributes.RowActions...)
			c.TypeAttributes = &attrs
		}
		out[i] = c
	}
	return out
}
