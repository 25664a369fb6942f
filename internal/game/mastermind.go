package game

// Colors is the fixed Mastermind color alphabet.
var Colors = []string{"red", "green", "blue", "yellow", "purple", "orange"}

// Feedback is the pin count returned for one guess: Exact pins are right
// color and position, Misplaced pins are right color wrong position.
type Feedback struct {
	Exact     int `json:"exact"`
	Misplaced int `json:"misplaced"`
}

// ValidCode reports whether code has the required length and only uses
// colors from the alphabet.
func ValidCode(code []string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, c := range code {
		if !validColor(c) {
			return false
		}
	}
	return true
}

func validColor(c string) bool {
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}

// Score compares guess against code. Exact matches are counted first and
// consumed; each remaining guess element then consumes the first unconsumed
// code element of the same color as a misplaced pin.
func Score(guess, code []string) Feedback {
	var fb Feedback
	n := len(code)
	usedGuess := make([]bool, n)
	usedCode := make([]bool, n)

	for i := 0; i < n; i++ {
		if guess[i] == code[i] {
			fb.Exact++
			usedGuess[i] = true
			usedCode[i] = true
		}
	}

	for i := 0; i < n; i++ {
		if usedGuess[i] {
			continue
		}
		for j := 0; j < n; j++ {
			if !usedCode[j] && code[j] == guess[i] {
				usedCode[j] = true
				fb.Misplaced++
				break
			}
		}
	}

	return fb
}

// Solved reports whether the feedback represents a full solution for the
// given code length.
func (f Feedback) Solved(length int) bool {
	return f.Exact == length
}
