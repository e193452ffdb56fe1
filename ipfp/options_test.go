package ipfp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, 1e-7, opts.Tolerances.Row)
	assert.Equal(t, 1e-7, opts.Tolerances.ColumnRelative)
	assert.Equal(t, 1e-11, opts.Tolerances.ColumnAbsolute)
	assert.Equal(t, 100, opts.MaxIterations)
	assert.Equal(t, ZeroSumFail, opts.ZeroSum)
	assert.False(t, opts.DisableRescale)
	assert.NotNil(t, opts.logger())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero row tolerance", func(o *Options) { o.Tolerances.Row = 0 }},
		{"nan column tolerance", func(o *Options) { o.Tolerances.ColumnRelative = math.NaN() }},
		{"infinite absolute tolerance", func(o *Options) { o.Tolerances.ColumnAbsolute = math.Inf(1) }},
		{"no iterations", func(o *Options) { o.MaxIterations = 0 }},
		{"zero block size", func(o *Options) { o.BlockSize = 0 }},
		{"negative workers", func(o *Options) { o.Workers = -1 }},
		{"unknown policy", func(o *Options) { o.ZeroSum = ZeroSumPolicy(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
		})
	}
}

func TestParseZeroSumPolicy(t *testing.T) {
	p, err := ParseZeroSumPolicy("uniform")
	require.NoError(t, err)
	assert.Equal(t, ZeroSumUniform, p)
	assert.Equal(t, "uniform", p.String())

	p, err = ParseZeroSumPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ZeroSumFail, p)

	_, err = ParseZeroSumPolicy("ignore")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
