package cpuspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimalThreadCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		spec      CPUSpec
		available int
		want      int
	}{
		{"physical cores", CPUSpec{PhysicalCores: 4, LogicalCores: 8}, 8, 4},
		{"container limit", CPUSpec{PhysicalCores: 16, LogicalCores: 32}, 2, 2},
		{"logical fallback", CPUSpec{LogicalCores: 6}, 8, 6},
		{"unknown cpu", CPUSpec{}, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.spec.OptimalThreadCount(tt.available))
		})
	}
}

func TestGetCPUSpecIsUsable(t *testing.T) {
	t.Parallel()

	assert.Positive(t, GetCPUSpec().OptimalThreadCount(0))
}
