package category_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/expmem/category"
)

func TestParse(t *testing.T) {
	parts, err := category.Parse("multi-task_single-robot_time-aware")
	require.NoError(t, err)
	assert.Equal(t, [3]string{"multi-task", "single-robot", "time-aware"}, parts)

	for _, tag := range []string{"", "single-task", "a_b", "a_b_c_d"} {
		_, err := category.Parse(tag)
		assert.Truef(t, errors.Is(err, category.ErrMalformed), "tag %q", tag)
	}
}

func TestDistance_Weights(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"single-task_single-robot_time-agnostic", "single-task_single-robot_time-agnostic", 0},
		{"multi-task_single-robot_time-agnostic", "single-task_single-robot_time-agnostic", 1},
		{"single-task_multi-robot_time-agnostic", "single-task_single-robot_time-agnostic", 1},
		{"multi-task_multi-robot_time-agnostic", "single-task_single-robot_time-agnostic", 2},
		{"single-task_single-robot_time-aware", "single-task_single-robot_time-agnostic", 3},
		{"multi-task_single-robot_time-aware", "single-task_single-robot_time-agnostic", 4},
		{"multi-task_multi-robot_time-aware", "single-task_single-robot_time-agnostic", 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, category.Distance(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestDistance_Properties(t *testing.T) {
	tags := category.All()
	require.Len(t, tags, 8)

	for _, a := range tags {
		assert.Equal(t, 0, category.Distance(a, a))
		for _, b := range tags {
			d := category.Distance(a, b)
			assert.Equal(t, d, category.Distance(b, a), "symmetry %s %s", a, b)
			assert.GreaterOrEqual(t, d, 0)
			assert.LessOrEqual(t, d, category.MaxDistance)
		}
	}
}

func TestDistance_Malformed(t *testing.T) {
	for _, bad := range []string{"", "single-task", "x_y", "a_b_c_d"} {
		for _, other := range append(category.All(), bad, "ST_SR_IA") {
			assert.Equal(t, category.MaxDistance, category.Distance(bad, other))
			assert.Equal(t, category.MaxDistance, category.Distance(other, bad))
		}
	}
}

func TestDistance_AbbreviatedTags(t *testing.T) {
	// Tokens are compared verbatim, so abbreviated tags work among themselves.
	assert.Equal(t, 4, category.Distance("MT_SR_TA", "ST_SR_IA"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, category.Validate("single-task_multi-robot_time-aware"))
	assert.Error(t, category.Validate("single-task_multi-robot_sometimes"))
	assert.ErrorIs(t, category.Validate("single-task"), category.ErrMalformed)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "multi-task_multi-robot_time-aware", category.Normalize("MT_MR_TA"))
	assert.Equal(t, "single-task_single-robot_time-agnostic", category.Normalize("st_sr_ia"))
	assert.Equal(t, "single-task_multi-robot_time-aware", category.Normalize("single-task_MR_time-aware"))
	assert.Equal(t, "garbage", category.Normalize("garbage"))
}
