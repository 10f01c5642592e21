package fsm

import (
	"testing"

	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/stretchr/testify/assert"
)

func TestConvertToCategory(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected category
		ok       bool
	}{
		{
			name:     "size is 0",
			size:     0,
			expected: 0,
			ok:       true,
		},
		{
			name:     "size is 15",
			size:     15,
			expected: 0,
			ok:       true,
		},
		{
			name:     "size is 16",
			size:     16,
			expected: 1,
			ok:       true,
		},
		{
			name:     "size is data size",
			size:     page.DataSize,
			expected: 222,
			ok:       true,
		},
		{
			name: "size is larger than data size",
			size: page.DataSize + 1,
			ok:   false,
		},
		{
			name: "size is negative",
			size: -1,
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertToCategory(tt.size)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestRequiredCategory(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected category
	}{
		{
			name:     "size is 0",
			size:     0,
			expected: 0,
		},
		{
			name:     "size is 1",
			size:     1,
			expected: 1,
		},
		{
			name:     "size is 16",
			size:     16,
			expected: 1,
		},
		{
			name:     "size is 17",
			size:     17,
			expected: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := requiredCategory(tt.size)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
