package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQueryNormalize(t *testing.T) {
	cases := []struct {
		in   PageQuery
		want PageQuery
	}{
		{PageQuery{}, PageQuery{Page: 1, Limit: 10}},
		{PageQuery{Page: -4, Limit: 500}, PageQuery{Page: 1, Limit: 50}},
		{PageQuery{Page: math.MaxInt, Limit: 16}, PageQuery{Page: MaxPage, Limit: 16}},
		{PageQuery{Page: 3<<59 + 1, Limit: 50}, PageQuery{Page: MaxPage, Limit: 50}},
	}

	for _, tc := range cases {
		got := tc.in.Normalize()
		assert.Equal(t, tc.want, got)
		assert.GreaterOrEqual(t, got.Offset(), 0)
		assert.LessOrEqual(t, got.Offset(), math.MaxInt32)
	}
}
