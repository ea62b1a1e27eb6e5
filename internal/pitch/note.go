// SPDX-License-Identifier: MIT
package pitch

import (
	"fmt"
	"math"
)

// Note is the equal-tempered note nearest to a frequency (A4 = 440 Hz).
type Note struct {
	Name   string  // e.g. "A", "C#"
	Octave int     // 4 for middle C
	Cents  float64 // deviation from the note, -50..+50
}

func (n Note) String() string {
	if n.Name == "" {
		return "--"
	}
	cents := math.Round(n.Cents)
	if cents == 0 {
		cents = 0 // drop the sign of -0
	}
	return fmt.Sprintf("%s%d %+.0fc", n.Name, n.Octave, cents)
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteForFrequency names the nearest note. Frequencies that are not
// positive return the zero Note.
func NoteForFrequency(frequency float64) Note {
	if !(frequency > 0) || math.IsInf(frequency, 1) {
		return Note{}
	}

	semitones := 12 * math.Log2(frequency/440.0)
	rounded := math.Round(semitones)

	// A is 9 semitones above C within an octave.
	fromC := int(rounded) + 9
	index := ((fromC % 12) + 12) % 12
	octave := 4 + int(math.Floor(float64(fromC)/12))

	return Note{
		Name:   noteNames[index],
		Octave: octave,
		Cents:  100 * (semitones - rounded),
	}
}
