package engine

import "fmt"

// Color is the status panel background.
type Color int

const (
	ColorReady Color = iota
	ColorListening
	ColorProcessing
)

func (c Color) String() string {
	switch c {
	case ColorReady:
		return "ready"
	case ColorListening:
		return "listening"
	case ColorProcessing:
		return "processing"
	}
	return "unknown"
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Hue names the panel fill.
func (c Color) Hue() string {
	switch c {
	case ColorListening:
		return "RED"
	case ColorProcessing:
		return "YELLOW"
	}
	return "GREEN"
}

// RGB is the panel fill as 8-bit channels.
func (c Color) RGB() (r, g, b uint8) {
	switch c {
	case ColorListening:
		return 255, 0, 0
	case ColorProcessing:
		return 255, 255, 0
	}
	return 0, 255, 0
}

// Status is one frame of the status panel.
type Status struct {
	Color     Color  `json:"color"`
	Label     string `json:"label"`
	Proximity int    `json:"proximity"`
}

func (s Status) ProximityText() string {
	return fmt.Sprintf("Prox: %d", s.Proximity)
}

const (
	LabelReady      = "READY: Deep Sleep"
	LabelListening  = "LISTENING: Say 'Yes'"
	LabelProcessing = "PROCESSING: LLM"
	LabelSpeaking   = "SPEAKING"
	LabelDone       = "DONE: Wait/Reset"
)

// Present projects engine state onto a panel frame. It is a pure function:
// the same arguments always give the same frame.
func Present(s State, etymologyWanted bool, proximity int) Status {
	st := Status{Color: ColorReady, Label: LabelReady, Proximity: proximity}
	switch s {
	case StateAwaitingConfirmation:
		st.Color, st.Label = ColorListening, LabelListening
	case StateGenerating:
		st.Color, st.Label = ColorProcessing, LabelProcessing
	case StateDelivering:
		st.Label = LabelSpeaking
	case StateAwaitingEtymology:
		if etymologyWanted {
			st.Color, st.Label = ColorProcessing, LabelProcessing
		} else {
			st.Label = LabelSpeaking
		}
	case StatePostDelivery:
		st.Label = LabelDone
	}
	return st
}
