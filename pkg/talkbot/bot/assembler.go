package bot

import "unicode/utf8"

// transcriptLabel marks the text that accompanies a voice reply.
const transcriptLabel = "Транскрипция: "

// Unit is one deliverable piece of a response. Either Audio or Text is set;
// an audio unit may carry no text at all.
type Unit struct {
	Text      string
	Audio     []byte
	AudioMIME string
}

// Assembler splits a response into units that fit the platform's
// per-message character limit.
type Assembler struct {
	limit int
}

// NewAssembler creates an assembler for the given character limit.
func NewAssembler(limit int) *Assembler {
	if limit <= 0 {
		limit = 4096
	}
	return &Assembler{limit: limit}
}

// Assemble turns a response into delivery units.
//
// With audio, the audio goes out as its own unit followed by the labeled
// transcript text, chunked like any text. Without audio the text is sent
// as-is, split into consecutive limit-sized chunks when it does not fit in
// one message. Chunk boundaries are positional, counted in characters, and
// concatenating the chunks reproduces the input exactly.
func (a *Assembler) Assemble(text string, audio []byte, audioMIME string) []Unit {
	if len(audio) == 0 {
		return a.textUnits(text)
	}

	units := []Unit{{Audio: audio, AudioMIME: audioMIME}}
	return append(units, a.textUnits(transcriptLabel+text)...)
}

func (a *Assembler) textUnits(text string) []Unit {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= a.limit {
		return []Unit{{Text: text}}
	}

	runes := []rune(text)
	units := make([]Unit, 0, (len(runes)+a.limit-1)/a.limit)
	for start := 0; start < len(runes); start += a.limit {
		end := start + a.limit
		if end > len(runes) {
			end = len(runes)
		}
		units = append(units, Unit{Text: string(runes[start:end])})
	}
	return units
}

// Limit returns the per-message character limit.
func (a *Assembler) Limit() int { return a.limit }
