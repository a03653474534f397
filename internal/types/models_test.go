package types_test

import (
	"testing"

	"github.com/paystream/settlement-api/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestEarningStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    types.EarningStatus
		to      types.EarningStatus
		allowed bool
	}{
		{"pending to released", types.EarningStatusPending, types.EarningStatusReleased, true},
		{"cleared to released", types.EarningStatusCleared, types.EarningStatusReleased, true},
		{"released is terminal", types.EarningStatusReleased, types.EarningStatusReleased, false},
		{"released cannot go pending", types.EarningStatusReleased, types.EarningStatusPending, false},
		{"pending cannot go cleared", types.EarningStatusPending, types.EarningStatusCleared, false},
		{"cleared cannot go pending", types.EarningStatusCleared, types.EarningStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.from.CanTransitionTo(tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
