package wifi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityConversion(t *testing.T) {
	assert.Equal(t, -100, QualityToDBm(0))
	assert.Equal(t, -50, QualityToDBm(100))
	assert.Equal(t, -50, QualityToDBm(250))
	assert.Equal(t, -70, QualityToDBm(60))

	assert.Equal(t, uint8(0), DBmToQuality(-120))
	assert.Equal(t, uint8(100), DBmToQuality(-20))
	assert.Equal(t, uint8(60), DBmToQuality(-70))
}

func TestChannelFromFrequency(t *testing.T) {
	tests := []struct {
		mhz     uint
		channel int
	}{
		{2412, 1},
		{2437, 6},
		{2472, 13},
		{2484, 14},
		{5180, 36},
		{5745, 149},
		{5955, 1},
		{6115, 33},
		{900, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.channel, ChannelFromFrequency(tt.mhz), "frequency %d", tt.mhz)
	}
}

func TestParseSecurity(t *testing.T) {
	for _, name := range []string{"OPEN", "wpa2-psk", "WPA-WPA2-PSK", "owe"} {
		s, err := ParseSecurity(name)
		assert.NoError(t, err, name)
		assert.NotEqual(t, SecurityUnknown, s, name)
	}

	s, err := ParseSecurity("wpa")
	assert.NoError(t, err)
	assert.Equal(t, SecurityWPA, s)

	_, err = ParseSecurity("802.1x-magic")
	assert.ErrorIs(t, err, ErrInvalid)

	assert.Equal(t, "WPA3-PSK", SecurityWPA3.String())
	assert.Equal(t, "UNKNOWN", SecurityUnknown.String())
	assert.False(t, SecurityOpen.IsSecure())
	assert.True(t, SecurityWEP.IsSecure())
	assert.True(t, SecurityWPA2Enterprise.IsEnterprise())
}
