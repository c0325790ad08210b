package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name   string
		street string
		number string
		city   string
		want   string
	}{
		{"full", "Hoofdstraat", "12", "Utrecht", "Hoofdstraat 12, Utrecht"},
		{"no number", "Hoofdstraat", "", "Utrecht", "Hoofdstraat, Utrecht"},
		{"no city", "Hoofdstraat", "12", "", "Hoofdstraat 12"},
		{"city only", "", "", "Utrecht", "Utrecht"},
		{"number only", "", "7b", "Leiden", "7b, Leiden"},
		{"whitespace trimmed", "  Hoofdstraat ", " 12 ", " Utrecht ", "Hoofdstraat 12, Utrecht"},
		{"empty", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.street, tt.number, tt.city))
		})
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Hoofdstraat 12, Utrecht", "hoofdstraat 12 utrecht"},
		{"strips diacritics", "Curaçaostraat 3, Den Haag", "curacaostraat 3 den haag"},
		{"collapses whitespace", "Hoofdstraat   12 ,  Utrecht", "hoofdstraat 12 utrecht"},
		{"drops punctuation", "Hoofdstraat, 12. (Utrecht)", "hoofdstraat 12 utrecht"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.in))
		})
	}
}

func TestEqualToleratesDrift(t *testing.T) {
	assert.True(t, Equal("Hoofdstraat 12, Utrecht", "hoofdstraat 12 UTRECHT"))
	assert.True(t, Equal("Curaçaostraat 3", "Curacaostraat 3"))
	assert.False(t, Equal("Hoofdstraat 12, Utrecht", "Hoofdstraat 14, Utrecht"))
}
