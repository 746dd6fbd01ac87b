package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{"empty", Context{}, "unknown (built unknown)"},
		{"tagged", Context{Version: "v1.2.0", BuildDate: "2026-10-19"}, "v1.2.0 (built 2026-10-19)"},
		{"revision shortened", Context{Version: "v1.2.0", BuildDate: "2026-10-19", Revision: "0123456789abcdef"}, "v1.2.0 (built 2026-10-19, rev 0123456789ab)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.withDefaults().String())
		})
	}
}

func TestGetNeverEmpty(t *testing.T) {
	t.Parallel()

	ctx := Get()
	assert.NotEmpty(t, ctx.Version)
	assert.NotEmpty(t, ctx.BuildDate)
}
