package votes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuestion(t *testing.T) {
	q, err := NormalizeQuestion("  Adopt   the new\tbylaws? ")
	require.NoError(t, err)
	assert.Equal(t, "Adopt the new bylaws?", q)

	_, err = NormalizeQuestion(" \n\t ")
	assert.ErrorIs(t, err, ErrQuestionRequired)
}

func TestNormalizeOptions(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
		err  error
	}{
		{"case and space duplicates collapse", []string{"Yes", " yes ", "No"}, []string{"Yes", "No"}, nil},
		{"inner whitespace collapses", []string{"Option  A", "option a", "Option\tB"}, []string{"Option A", "Option B"}, nil},
		{"blanks dropped", []string{"", "Red", "  ", "Blue"}, []string{"Red", "Blue"}, nil},
		{"order kept", []string{"C", "A", "B"}, []string{"C", "A", "B"}, nil},
		{"one distinct", []string{"Yes", "YES", " yes"}, nil, ErrOptionsRequired},
		{"empty", nil, nil, ErrOptionsRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeOptions(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
