package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Textbooks", "textbooks"},
		{"spaces", "Sports Equipment", "sports-equipment"},
		{"punctuation", "Casio FX-991ES (barely used)", "casio-fx-991es-barely-used"},
		{"extra whitespace", "  Kitchen   Appliances  ", "kitchen-appliances"},
		{"leading symbols", "--Hello!", "hello"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.in))
		})
	}
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "calculus-textbook-3f2a", WithSuffix("calculus-textbook", "3f2a"))
	assert.Equal(t, "3f2a", WithSuffix("", "3f2a"))
}
