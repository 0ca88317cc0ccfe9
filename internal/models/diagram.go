package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Diagram is one saved schema document with its canvas state.
type Diagram struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	DBML        string          `json:"dbml"`
	CanvasState json.RawMessage `json:"canvasState,omitempty"`
	CreatedAt   time.Time       `json:"created"`
	UpdatedAt   time.Time       `json:"updated"`
}

func (d *Diagram) Prepare() {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Name = strings.TrimSpace(d.Name)
}

// DiagramPage is one page of a listing, newest first.
type DiagramPage struct {
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
	Items      []Diagram `json:"items"`
}
