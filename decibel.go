package rack

import "math"

// MinDecibels is the floor GainToDB returns for silent or negative gains.
const MinDecibels = -80

// Clamp limits v to [min, max]. NaN maps to min.
func Clamp(v, min, max float64) float64 {
	if v < min || math.IsNaN(v) {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// GainToDB converts a linear gain to decibels, never going below
// MinDecibels.
func GainToDB(gain float64) float64 {
	if gain <= 0 {
		return MinDecibels
	}
	return math.Max(20*math.Log10(gain), MinDecibels)
}

func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// MIDIToFrequency converts a MIDI note number to Hz, A4 (69) = 440 Hz.
func MIDIToFrequency(note float64) float64 {
	return 440 * math.Exp2((note-69)/12)
}

func FrequencyToMIDI(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	return 69 + 12*math.Log2(freq/440)
}
