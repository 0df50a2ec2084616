package models

import "fmt"

type SummaryLength string

const (
	LengthBrief    SummaryLength = "brief"
	LengthDetailed SummaryLength = "detailed"
)

type SummaryStyle string

const (
	StyleParagraph SummaryStyle = "paragraph"
	StyleBullets   SummaryStyle = "bullets"
)

// Preferences shape the analysis prompt. They are fixed once analysis starts.
type Preferences struct {
	Length SummaryLength `json:"length"`
	Style  SummaryStyle  `json:"style"`
}

func DefaultPreferences() Preferences {
	return Preferences{Length: LengthBrief, Style: StyleParagraph}
}

// WithDefaults fills zero fields from DefaultPreferences.
func (p Preferences) WithDefaults() Preferences {
	def := DefaultPreferences()
	if p.Length == "" {
		p.Length = def.Length
	}
	if p.Style == "" {
		p.Style = def.Style
	}
	return p
}

func (p Preferences) Validate() error {
	switch p.Length {
	case LengthBrief, LengthDetailed:
	default:
		return fmt.Errorf("invalid summary length %q: must be brief or detailed", p.Length)
	}
	switch p.Style {
	case StyleParagraph, StyleBullets:
	default:
		return fmt.Errorf("invalid summary style %q: must be paragraph or bullets", p.Style)
	}
	return nil
}
