package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Channel
		wantErr  bool
	}{
		{
			name:     "channel username",
			raw:      "@mychannel",
			expected: Channel{Username: "@mychannel"},
		},
		{
			name:     "numeric chat id",
			raw:      "-1001234567890",
			expected: Channel{ChatID: -1001234567890},
		},
		{
			name:    "garbage",
			raw:     "not a channel",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, err := ParseChannel(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, channel)
		})
	}
}
