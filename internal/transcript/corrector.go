package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// DefaultVocabulary lists technical terms streaming recognisers commonly
// mangle. Resume skills are appended per interview on top of this base.
var DefaultVocabulary = []string{
	"Kubernetes", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka",
	"GraphQL", "gRPC", "TypeScript", "JavaScript", "Python", "Golang",
	"Terraform", "Ansible", "Jenkins", "Prometheus", "Grafana",
	"Elasticsearch", "RabbitMQ", "Nginx", "OAuth", "WebSocket",
	"PyTorch", "TensorFlow", "scikit-learn", "NumPy", "pandas",
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic code overlaps and the corrector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// term is one vocabulary entry with its precomputed phonetic codes.
type term struct {
	original string
	lower    string
	tokens   []string
	codes    map[string]struct{}
}

// Corrector aligns misrecognised words against a technical vocabulary.
//
// Candidate filtering uses Double Metaphone code overlap; ranking uses
// Jaro-Winkler similarity on the original strings. Multi-word terms are
// matched against n-gram windows of the input, longest window first, so
// "post gress queue ell" can collapse into "PostgreSQL". Read-only after
// construction and safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	terms             []term
	maxTermWords      int
}

// NewCorrector builds a corrector over the given vocabulary. Phonetic codes
// are computed once here, not per call.
func NewCorrector(vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	seen := make(map[string]struct{}, len(vocabulary))
	for _, v := range vocabulary {
		lower := strings.ToLower(strings.TrimSpace(v))
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		tokens := strings.Fields(lower)
		c.terms = append(c.terms, term{
			original: strings.TrimSpace(v),
			lower:    lower,
			tokens:   tokens,
			codes:    codesForTokens(tokens),
		})
		if len(tokens) > c.maxTermWords {
			c.maxTermWords = len(tokens)
		}
	}
	return c
}

// Correct replaces misheard vocabulary terms in text and returns the
// corrected text with an itemised record of substitutions. Exact-case
// matches are left untouched.
func (c *Corrector) Correct(text string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(c.terms) == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := c.maxTermWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			corrected, conf, ok := c.match(window)
			if !ok {
				continue
			}
			output = append(output, strings.Fields(corrected)...)
			if !strings.EqualFold(corrected, window) {
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  corrected,
					Confidence: conf,
				})
			}
			i += n
			matched = true
			break
		}
		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}
	return strings.Join(output, " "), corrections
}

// match finds the vocabulary term most similar to the window, or reports no
// match. Punctuation stuck to the window edges is ignored for comparison.
func (c *Corrector) match(window string) (string, float64, bool) {
	cleaned := strings.ToLower(strings.Trim(window, ".,!?;: "))
	if cleaned == "" {
		return window, 0, false
	}
	windowTokens := strings.Fields(cleaned)
	windowCodes := codesForTokens(windowTokens)

	var (
		best         *term
		bestScore    float64
		bestPhonetic bool
	)
	for idx := range c.terms {
		t := &c.terms[idx]
		if cleaned == t.lower {
			// Already correct; report a match so the window is consumed
			// with canonical casing, but record no correction.
			return t.original, 1, true
		}
		score := bestJWScore(windowTokens, t.tokens, cleaned, t.lower)
		if codesOverlap(windowCodes, t.codes) {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t, score, true
			}
		} else if !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore {
			best, bestScore = t, score
		}
	}
	if best == nil {
		return window, 0, false
	}
	return best.original, bestScore, true
}

// codesForTokens returns the union of Double Metaphone codes for the tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// window and a term: full strings, space-stripped strings, and the best
// pairwise token score.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)
	if len(inputTokens) > 1 || len(termTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inputTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(it, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
