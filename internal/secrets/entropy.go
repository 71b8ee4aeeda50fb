package secrets

import (
	"math"
	"strings"
)

// ShannonEntropy returns the Shannon entropy of s in bits per character.
// Values above 4 are typical of generated keys; below 2 of prose.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

var placeholders = []string{
	"example", "sample", "placeholder", "dummy", "fake", "mock",
	"<your", "your_", "xxx", "changeme", "replace", "insert",
	"fixme", "todo", "${", "{{", "process.env",
}

// isLikelyFalsePositive reports lines and values that look like documentation
// or placeholders rather than real credentials.
func isLikelyFalsePositive(line, secret string) bool {
	lower := strings.ToLower(line)
	for _, p := range placeholders {
		if strings.Contains(lower, p) {
			return true
		}
	}
	secretLower := strings.ToLower(secret)
	return strings.HasPrefix(secretLower, "example") ||
		strings.HasPrefix(secretLower, "test") ||
		strings.Contains(secretLower, "xxxxxxxx")
}

// confidence scores a match: 0.7 base, raised by entropy and by a
// provider-specific format, lowered for key/value heuristics.
func confidence(secret string, p Pattern) float64 {
	c := 0.7
	switch e := ShannonEntropy(secret); {
	case e > 4.0:
		c += 0.2
	case e > 3.5:
		c += 0.1
	}
	if p.specific() {
		c += 0.1
	} else {
		c -= 0.1
	}
	return math.Max(0, math.Min(1, c))
}
