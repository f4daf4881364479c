package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Color is the tag color of a note.
type Color string

// Supported note colors
const (
	ColorYellow Color = "yellow"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPink   Color = "pink"
	ColorPurple Color = "purple"
)

// DefaultColor is used when a note has no color or an unknown one.
const DefaultColor = ColorYellow

var colors = []Color{ColorYellow, ColorBlue, ColorGreen, ColorPink, ColorPurple}

// Colors returns the supported colors in display order.
func Colors() []Color {
	out := make([]Color, len(colors))
	copy(out, colors)
	return out
}

// Valid returns true if c is one of the supported colors.
func (c Color) Valid() bool {
	for _, known := range colors {
		if c == known {
			return true
		}
	}
	return false
}

// ParseColor maps s onto a supported color, falling back to DefaultColor.
func ParseColor(s string) Color {
	c := Color(s)
	if !c.Valid() {
		return DefaultColor
	}
	return c
}

// Note is a single sticky note. It is the only persisted entity.
type Note struct {
	ID        string     `json:"id"`
	PageGroup string     `json:"pageGroup"`
	Content   string     `json:"content"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Color     Color      `json:"color"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// noteJSON mirrors Note for decoding; pageUrl is the field name older
// widget builds send.
type noteJSON struct {
	ID        string     `json:"id"`
	PageGroup string     `json:"pageGroup"`
	PageURL   string     `json:"pageUrl"`
	Content   string     `json:"content"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Color     Color      `json:"color"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// UnmarshalJSON accepts both pageGroup and the legacy pageUrl field.
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = Note{
		ID:        raw.ID,
		PageGroup: raw.PageGroup,
		Content:   raw.Content,
		X:         raw.X,
		Y:         raw.Y,
		Color:     raw.Color,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if n.PageGroup == "" {
		n.PageGroup = raw.PageURL
	}
	return nil
}

// Validate checks the fields every backend requires.
func Validate(n Note) error {
	if n.ID == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingID)
	}
	if n.PageGroup == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingPageGroup)
	}
	return nil
}

// Normalize applies defaults to the optional fields. The id and pageGroup
// are never modified.
func Normalize(n Note) Note {
	n.Color = ParseColor(string(n.Color))
	return n
}

// SameContent returns true if a and b agree on every caller-owned field,
// ignoring server-assigned timestamps.
func SameContent(a, b Note) bool {
	return a.ID == b.ID &&
		a.PageGroup == b.PageGroup &&
		a.Content == b.Content &&
		a.X == b.X &&
		a.Y == b.Y &&
		a.Color == b.Color
}
