package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "Deep Residual Learning", expected: "deep residual learning"},
		{name: "collapse spaces and tabs", input: "deep \t  residual\tlearning", expected: "deep residual learning"},
		{name: "newlines", input: "deep\nresidual\r\nlearning", expected: "deep residual learning"},
		{name: "latex markup", input: "$\\ell_1$ {Regularization}", expected: "ell 1 regularization"},
		{name: "brackets and equals", input: "a<b>=c [d]", expected: "a b c d"},
		{name: "keeps ordinary punctuation", input: "BERT: Pre-training, Revisited.", expected: "bert: pre-training, revisited."},
		{name: "trims", input: "   x   ", expected: "x"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Attention Is All You Need",
		"  {ImageNet}  Classification with\tDeep\n\nConvolutional  Networks ",
		"$O(n^2)$ <i>algorithms</i> == fast?",
		"Über die Grundlagen ~ der Mathematik",
		"",
		"___",
	}
	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "input %q", s)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{name: "identical", a: "graph neural networks", b: "graph neural networks", expected: 1},
		{name: "identical after normalization", a: "Graph  Neural\tNetworks", b: "graph neural networks", expected: 1},
		{name: "shifted", a: "abcd", b: "bcde", expected: 0.75},
		{name: "prefix", a: "hello world", b: "hello", expected: 10.0 / 16.0},
		{name: "disjoint", a: "abc", b: "xyz", expected: 0},
		{name: "one empty", a: "", b: "abc", expected: 0},
		{name: "both empty", a: "", b: "", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{
		{"Deep Residual Learning for Image Recognition", "Deep residual learning for image recognition."},
		{"Attention is all you need", "Attention is not all you need"},
		{"A", "Completely unrelated title about proteins"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestMatches_Monotonic(t *testing.T) {
	pairs := [][2]string{
		{"Deep Residual Learning for Image Recognition", "Deep residual learning for image recognition (CVPR)"},
		{"Attention is all you need", "Attention is not all you need"},
		{"BERT", "RoBERTa"},
	}
	thresholds := []float64{0, 0.1, 0.3, 0.5, 0.7, 0.75, 0.8, 0.9, 0.95, 1}

	for _, p := range pairs {
		for i := 1; i < len(thresholds); i++ {
			if Matches(p[0], p[1], thresholds[i]) {
				assert.True(t, Matches(p[0], p[1], thresholds[i-1]),
					"%q/%q matched at %v but not at %v", p[0], p[1], thresholds[i], thresholds[i-1])
			}
		}
	}
}

func TestMatches_Thresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, 0.9, th.High)
	assert.Equal(t, 0.75, th.Low)

	t.Run("near-identical titles pass the high threshold", func(t *testing.T) {
		assert.True(t, Matches("Deep Residual Learning for Image Recognition", "Deep residual learning for image recognition.", th.High))
	})

	t.Run("scraped title with noise passes only the low threshold", func(t *testing.T) {
		a := "Deep Residual Learning for Image Recognition"
		b := "Deep residual learning for image recogn., in Proc. CVPR"
		s := Similarity(a, b)
		assert.Less(t, s, th.High)
		assert.GreaterOrEqual(t, s, th.Low)
	})

	t.Run("unrelated titles fail both", func(t *testing.T) {
		assert.False(t, Matches("Protein folding with AlphaFold", "Attention is all you need", th.Low))
	})
}
