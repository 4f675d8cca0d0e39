package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veridata/pkg/domain-errors"
)

func TestParseResolutionStrategy(t *testing.T) {
	t.Run("accepts every defined strategy", func(t *testing.T) {
		for _, strategy := range []ResolutionStrategy{
			ResolutionFirstCorrect,
			ResolutionSecondCorrect,
			ResolutionNewValue,
			ResolutionAdjudicated,
		} {
			parsed, err := ParseResolutionStrategy(strategy.String())
			require.NoError(t, err)
			assert.Equal(t, strategy, parsed)
		}
	})

	t.Run("rejects unknown input", func(t *testing.T) {
		for _, input := range []string{"", "both_correct", "First_Correct"} {
			_, err := ParseResolutionStrategy(input)
			require.Error(t, err, input)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), input)
		}
	})
}

// TestRequiresValue pins which strategies take a caller-supplied value. The
// resolution flow validates this before it touches any state.
func TestRequiresValue(t *testing.T) {
	assert.False(t, ResolutionFirstCorrect.RequiresValue())
	assert.False(t, ResolutionSecondCorrect.RequiresValue())
	assert.True(t, ResolutionNewValue.RequiresValue())
	assert.True(t, ResolutionAdjudicated.RequiresValue())
}
