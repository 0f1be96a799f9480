package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and strips punctuation",
			text: "Bike STOLEN, near 5th-Avenue!",
			want: []string{"bike", "stolen", "near", "avenue"},
		},
		{
			name: "drops short tokens",
			text: "a man at the car",
			want: []string{"man", "the", "car"},
		},
		{
			name: "keeps duplicates",
			text: "fire fire fire",
			want: []string{"fire", "fire", "fire"},
		},
		{
			name: "empty text",
			text: "",
			want: []string{},
		},
		{
			name: "only punctuation",
			text: "!!! ... ---",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokens(tt.text))
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical text",
			a:    "stolen bike red",
			b:    "stolen bike red",
			want: 1.0,
		},
		{
			name: "disjoint text",
			a:    "stolen bike",
			b:    "loud party",
			want: 0.0,
		},
		{
			name: "partial overlap",
			a:    "stolen red bike",
			b:    "stolen blue bike",
			want: 0.5, // {stolen,bike} / {stolen,red,bike,blue}
		},
		{
			name: "both empty",
			a:    "",
			b:    "",
			want: 0.0,
		},
		{
			name: "one empty",
			a:    "stolen bike",
			b:    "",
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(TokenSet(tt.a), TokenSet(tt.b))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestJaccardSymmetric(t *testing.T) {
	a := TokenSet("man seen breaking window with hammer")
	b := TokenSet("someone smashed the window tonight")

	assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
}
