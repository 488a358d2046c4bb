// Package emotion defines the fixed set of emotion labels every prediction is expressed over.
package emotion

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Emotion is one of the canonical emotion labels
type Emotion string

const (
	Happy     Emotion = "Happy"
	Sad       Emotion = "Sad"
	Angry     Emotion = "Angry"
	Neutral   Emotion = "Neutral"
	Surprised Emotion = "Surprised"
	Fear      Emotion = "Fear"
	Disgust   Emotion = "Disgust"
)

// Count is the number of canonical labels
const Count = 7

var all = [Count]Emotion{Happy, Sad, Angry, Neutral, Surprised, Fear, Disgust}

// All returns the canonical labels in their fixed order
func All() []Emotion {
	out := make([]Emotion, Count)
	copy(out, all[:])
	return out
}

// Index returns the position of e in the fixed order, or -1 if e is not canonical
func Index(e Emotion) int {
	for i, c := range all {
		if c == e {
			return i
		}
	}
	return -1
}

// Valid reports whether e is a canonical label
func (e Emotion) Valid() bool {
	return Index(e) >= 0
}

func (e Emotion) String() string {
	return string(e)
}

// Parse canonicalises a user-supplied label ("happy", " SAD ") into an Emotion
func Parse(s string) (Emotion, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("empty emotion label")
	}
	// Casers are stateful, so one is built per call
	e := Emotion(cases.Title(language.English).String(strings.ToLower(trimmed)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown emotion %q (expected one of %s)", s, strings.Join(Names(), ", "))
	}
	return e, nil
}

// Names returns the canonical labels as strings
func Names() []string {
	names := make([]string, Count)
	for i, e := range all {
		names[i] = string(e)
	}
	return names
}
