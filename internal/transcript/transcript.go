// Package transcript assembles and cleans up streaming speech-to-text output.
//
// Raw STT output is rarely perfect for technical vocabulary — library and
// tool names ("Kubernetes", "PostgreSQL", "gRPC") are frequently misheard.
// The [Corrector] aligns misrecognised words against a known skill
// vocabulary using Double Metaphone phonetic codes ranked by Jaro-Winkler
// similarity. The [Accumulator] merges interim and final transcript events
// from the streaming recogniser into one growing answer text.
package transcript

// Correction captures a single word-level substitution made by the corrector.
type Correction struct {
	// Original is the word as produced by the STT provider.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the Jaro-Winkler similarity that selected the term.
	Confidence float64
}
