package interview

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// poolEntry is one pre-written question in the static pool.
type poolEntry struct {
	text       string
	difficulty Difficulty
	qtype      QuestionType
}

// questionPool holds curated questions keyed by lower-cased skill name. The
// pool seeds common skills; anything not covered falls through to dynamic
// generation.
var questionPool = map[string][]poolEntry{
	"python": {
		{"What is the difference between a list and a tuple in Python?", DifficultyBasic, QuestionConceptual},
		{"Explain how Python's garbage collection works.", DifficultyIntermediate, QuestionConceptual},
		{"How does the GIL affect multi-threaded Python programs?", DifficultyAdvanced, QuestionConceptual},
		{"How would you design a C extension to bypass the GIL for a CPU-bound workload?", DifficultyExpert, QuestionPractical},
	},
	"javascript": {
		{"What is the difference between var, let, and const?", DifficultyBasic, QuestionConceptual},
		{"Explain how closures work in JavaScript with an example.", DifficultyIntermediate, QuestionConceptual},
		{"How does the event loop handle promises versus setTimeout callbacks?", DifficultyAdvanced, QuestionConceptual},
		{"How would you diagnose and fix a memory leak in a long-running Node.js service?", DifficultyExpert, QuestionPractical},
	},
	"go": {
		{"What is a goroutine and how does it differ from an OS thread?", DifficultyBasic, QuestionConceptual},
		{"When would you use a buffered channel instead of an unbuffered one?", DifficultyIntermediate, QuestionConceptual},
		{"Explain how the Go scheduler handles blocking system calls.", DifficultyAdvanced, QuestionConceptual},
		{"Describe how you would detect and eliminate allocation hot spots in a latency-sensitive Go service.", DifficultyExpert, QuestionPractical},
	},
	"sql": {
		{"What is the difference between an INNER JOIN and a LEFT JOIN?", DifficultyBasic, QuestionConceptual},
		{"When does an index hurt rather than help query performance?", DifficultyIntermediate, QuestionConceptual},
		{"Explain isolation levels and the anomalies each one prevents.", DifficultyAdvanced, QuestionConceptual},
		{"How would you redesign a schema suffering from heavy lock contention on a counter table?", DifficultyExpert, QuestionPractical},
	},
	"react": {
		{"What is the virtual DOM and why does React use one?", DifficultyBasic, QuestionConceptual},
		{"When should a component use useMemo or useCallback?", DifficultyIntermediate, QuestionPractical},
		{"Explain how React's reconciliation algorithm decides what to re-render.", DifficultyAdvanced, QuestionConceptual},
		{"How would you architect state management for a collaborative editor with optimistic updates?", DifficultyExpert, QuestionSystemDesign},
	},
	"docker": {
		{"What is the difference between a Docker image and a container?", DifficultyBasic, QuestionConceptual},
		{"How do multi-stage builds reduce image size?", DifficultyIntermediate, QuestionPractical},
		{"Explain how container networking works across hosts.", DifficultyAdvanced, QuestionConceptual},
		{"How would you harden a container runtime for untrusted workloads?", DifficultyExpert, QuestionPractical},
	},
	"kubernetes": {
		{"What is a Pod and why can it contain multiple containers?", DifficultyBasic, QuestionConceptual},
		{"How do liveness and readiness probes differ in effect?", DifficultyIntermediate, QuestionConceptual},
		{"Explain how the scheduler places pods when resources are constrained.", DifficultyAdvanced, QuestionConceptual},
		{"Design a multi-tenant cluster isolation strategy covering network, compute, and storage.", DifficultyExpert, QuestionSystemDesign},
	},
	"machine learning": {
		{"What is the difference between supervised and unsupervised learning?", DifficultyBasic, QuestionConceptual},
		{"How do you detect and handle overfitting?", DifficultyIntermediate, QuestionPractical},
		{"Explain the bias-variance tradeoff and how it guides model selection.", DifficultyAdvanced, QuestionConceptual},
		{"How would you design an online learning system that adapts to concept drift in production?", DifficultyExpert, QuestionSystemDesign},
	},
	"system design": {
		{"What is horizontal versus vertical scaling?", DifficultyBasic, QuestionConceptual},
		{"How would you add caching to a read-heavy API?", DifficultyIntermediate, QuestionPractical},
		{"Design a rate limiter for a distributed API gateway.", DifficultyAdvanced, QuestionSystemDesign},
		{"Design a globally distributed message queue with at-least-once delivery.", DifficultyExpert, QuestionSystemDesign},
	},
	"aws": {
		{"What is the difference between S3 and EBS?", DifficultyBasic, QuestionConceptual},
		{"When would you choose Lambda over ECS for a workload?", DifficultyIntermediate, QuestionPractical},
		{"Explain how you would design a multi-region failover for an RDS-backed service.", DifficultyAdvanced, QuestionSystemDesign},
		{"How would you architect a cost-optimised data lake ingesting 10TB per day?", DifficultyExpert, QuestionSystemDesign},
	},
}

// CodingProblem is a classic coding question used when dynamic generation is
// unavailable. TTSSummary is the short spoken form; FullText is what the
// candidate sees in the editor.
type CodingProblem struct {
	TTSSummary string
	FullText   string
	Difficulty Difficulty
}

// classicCodingProblems is the hardcoded fallback per difficulty band.
var classicCodingProblems = map[Difficulty][]CodingProblem{
	DifficultyBasic: {
		{
			TTSSummary: "Let's do a short coding exercise. Please reverse a string without using built-in reverse functions.",
			FullText:   "Write a function that reverses a string without using any built-in reverse helpers.\n\nExample:\n  Input: \"hello\"\n  Output: \"olleh\"",
			Difficulty: DifficultyBasic,
		},
		{
			TTSSummary: "Here's a coding exercise. Check whether a given string is a palindrome.",
			FullText:   "Write a function that returns true if the input string is a palindrome, ignoring case.\n\nExample:\n  Input: \"Racecar\"\n  Output: true",
			Difficulty: DifficultyBasic,
		},
	},
	DifficultyIntermediate: {
		{
			TTSSummary: "Let's try a coding problem. Find the first non-repeating character in a string.",
			FullText:   "Given a string, return the first character that does not repeat anywhere in the string. Return an empty result if every character repeats.\n\nExample:\n  Input: \"swiss\"\n  Output: \"w\"",
			Difficulty: DifficultyIntermediate,
		},
		{
			TTSSummary: "Here's a coding exercise on arrays. Find two numbers in a list that sum to a target value.",
			FullText:   "Given an array of integers and a target, return the indices of two numbers that add up to the target. Assume exactly one solution exists.\n\nExample:\n  Input: nums = [2, 7, 11, 15], target = 9\n  Output: [0, 1]",
			Difficulty: DifficultyIntermediate,
		},
	},
	DifficultyAdvanced: {
		{
			TTSSummary: "Let's work through a coding problem. Find the longest substring without repeating characters.",
			FullText:   "Given a string, find the length of the longest substring without repeating characters.\n\nExample:\n  Input: \"abcabcbb\"\n  Output: 3 (\"abc\")",
			Difficulty: DifficultyAdvanced,
		},
		{
			TTSSummary: "Here's a harder coding exercise. Merge a list of overlapping intervals.",
			FullText:   "Given a collection of intervals, merge all overlapping intervals and return the result sorted by start.\n\nExample:\n  Input: [[1,3],[2,6],[8,10]]\n  Output: [[1,6],[8,10]]",
			Difficulty: DifficultyAdvanced,
		},
	},
	DifficultyExpert: {
		{
			TTSSummary: "Let's tackle a challenging problem. Find the median of two sorted arrays in logarithmic time.",
			FullText:   "Given two sorted arrays, find the median of the combined data in O(log(m+n)) time.\n\nExample:\n  Input: [1, 3], [2]\n  Output: 2.0",
			Difficulty: DifficultyExpert,
		},
		{
			TTSSummary: "Here's a challenging design-and-code exercise. Implement an LRU cache with constant-time operations.",
			FullText:   "Implement an LRU cache supporting Get and Put in O(1). Put evicts the least recently used entry once capacity is exceeded.",
			Difficulty: DifficultyExpert,
		},
	},
}

// Pool serves pre-written questions, preferring the requested difficulty and
// falling back to adjacent bands before giving up. Safe for concurrent use.
type Pool struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewPool returns a pool seeded for non-deterministic selection. Tests can
// pass a fixed seed through NewPoolWithSeed.
func NewPool() *Pool {
	return NewPoolWithSeed(rand.Int63())
}

// NewPoolWithSeed returns a pool with deterministic selection order.
func NewPoolWithSeed(seed int64) *Pool {
	return &Pool{rand: rand.New(rand.NewSource(seed))}
}

// Pick returns a pool question for the skill at or near the requested
// difficulty, excluding question texts already asked. The second return is
// false when the pool has nothing usable and the caller should generate
// dynamically.
func (p *Pool) Pick(skill string, difficulty Difficulty, asked map[string]bool) (Question, bool) {
	entries := questionPool[strings.ToLower(skill)]
	if len(entries) == 0 {
		return Question{}, false
	}

	// Requested band first, then one step easier, then one step harder.
	for _, d := range []Difficulty{difficulty, (difficulty - 1).Clamp(), (difficulty + 1).Clamp()} {
		candidates := make([]poolEntry, 0, len(entries))
		for _, e := range entries {
			if e.difficulty == d && !asked[e.text] {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		p.mu.Lock()
		chosen := candidates[p.rand.Intn(len(candidates))]
		p.mu.Unlock()
		return Question{
			ID:         uuid.NewString(),
			Text:       chosen.text,
			Skill:      skill,
			Difficulty: chosen.difficulty,
			Type:       chosen.qtype,
			Context:    map[string]string{"source": "pool"},
		}, true
	}
	return Question{}, false
}

// PickCoding returns a classic coding problem at the requested difficulty,
// excluding already-asked texts. Falls back to adjacent bands like Pick.
func (p *Pool) PickCoding(difficulty Difficulty, asked map[string]bool) (CodingProblem, bool) {
	for _, d := range []Difficulty{difficulty, (difficulty - 1).Clamp(), (difficulty + 1).Clamp()} {
		candidates := make([]CodingProblem, 0, 2)
		for _, c := range classicCodingProblems[d] {
			if !asked[c.FullText] {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		p.mu.Lock()
		chosen := candidates[p.rand.Intn(len(candidates))]
		p.mu.Unlock()
		return chosen, true
	}
	return CodingProblem{}, false
}

// HasSkill reports whether the static pool covers a skill at all.
func (p *Pool) HasSkill(skill string) bool {
	return len(questionPool[strings.ToLower(skill)]) > 0
}
