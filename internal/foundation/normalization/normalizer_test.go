package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color string

const (
	red   color = "red"
	green color = "green"
)

func TestNormalizer(t *testing.T) {
	n := NewNormalizer("color", map[string]color{"Red": red, "green": green}, red)

	tests := []struct {
		in   string
		want color
	}{
		{"red", red},
		{"  GREEN ", green},
		{"", red},
	}
	for _, tt := range tests {
		got, err := n.Normalize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := n.Normalize("blue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid color "blue", valid options: green, red`)
	assert.Equal(t, []string{"green", "red"}, n.ValidKeys())
}
