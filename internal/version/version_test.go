package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.1.0", "0.1.0", true},
		{"0.1.1", "0.1.0", true},
		{"0.2.0", "0.10.0", false},
		{"1.0.0", "0.99.9", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVersionGreaterOrEqualThan(tt.version, tt.target), "%s >= %s", tt.version, tt.target)
	}
}

func TestIsVersionGreaterThan(t *testing.T) {
	assert.True(t, IsVersionGreaterThan("0.1.1", "0.1.0"))
	assert.False(t, IsVersionGreaterThan("0.1.0", "0.1.0"))
	assert.False(t, IsVersionGreaterThan("v0.1.0", "0.2.0"))
}

func TestGetMinorVersion(t *testing.T) {
	assert.Equal(t, "0.1", GetMinorVersion("0.1.3"))
	assert.Equal(t, "", GetMinorVersion("1"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("0.1.0"))
	assert.Error(t, Validate("zero.one"))
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}
