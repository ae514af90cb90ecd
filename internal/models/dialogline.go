package models

import "time"

type LineStatus string

const (
	LinePending   LineStatus = "pending"   // awaiting the speaker's turn
	LineSpoken    LineStatus = "spoken"    // completed (matched, or robot line)
	LineAbandoned LineStatus = "abandoned" // speaker left or turn was skipped
)

// DialogLine is one scripted line of the session transcript. History is
// append-only: lines are never reordered or deleted, ordering is the
// monotonic Seq assigned at append time. Only Status advances after append.
type DialogLine struct {
	Seq            int        `json:"seq"`
	SpeakerID      string     `json:"speakerId"`
	RoleName       string     `json:"roleName"`
	TextNative     string     `json:"textNative"`
	TextTranslated string     `json:"textTranslated"`
	AudioURL       string     `json:"audioUrl,omitempty"`
	Status         LineStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func NewDialogLine(speakerID, roleName, textNative, textTranslated string) DialogLine {
	return DialogLine{
		SpeakerID:      speakerID,
		RoleName:       roleName,
		TextNative:     textNative,
		TextTranslated: textTranslated,
		Status:         LinePending,
		CreatedAt:      time.Now(),
	}
}
