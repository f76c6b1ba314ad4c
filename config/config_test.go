package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, 9945, GetInt(FeedListeningPortKey))
	assert.Equal(t, 9946, GetInt(HTTPListeningPortKey))
	assert.Equal(t, 5*time.Second, GetDuration(PriceCacheTTLKey))
	assert.Equal(t, 5*time.Second, GetDuration(BroadcastIntervalKey))
	assert.Equal(t, 7*time.Second, GetDuration(PriceRequestTimeoutKey))
	assert.Equal(t, time.Second, GetDuration(ReconnectBaseDelayKey))
	assert.Equal(t, 30*time.Second, GetDuration(ReconnectMaxDelayKey))
	assert.Equal(t, 10, GetInt(ReconnectMaxAttemptsKey))
	assert.Equal(t, 4096, GetInt(MaxMessageSizeKey))
	assert.Empty(t, GetStringSlice(AllowedOriginsKey))
	assert.False(t, GetBool(EnableProfilerKey))
	assert.Equal(t, "stats", GetString(StatsDumpDirKey))
}

func TestValidate(t *testing.T) {
	require.NoError(t, validate())

	Set(ReconnectBaseDelayKey, 60000)
	err := validate()
	require.Error(t, err)
	Set(ReconnectBaseDelayKey, 1000)

	Set(PriceCacheTTLKey, 0)
	err = validate()
	require.Error(t, err)
	Set(PriceCacheTTLKey, 5000)
}
