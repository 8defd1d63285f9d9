package store

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ValidFlags = `{
  "createdAt": "2024-04-17T19:40:53.716Z",
  "environment": {"name": "Production"},
  "flags": {
    "valid-flag": {
      "key": "valid-flag",
      "enabled": true,
      "variationType": "STRING",
      "variations": {"bandit": {"key": "bandit", "value": "shoe-bandit"}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "bandit", "shards": []}]}]
    },
    "invalid-flag": {
      "key": "invalid-flag",
      "enabled": true,
      "variationType": "BOOLEAN",
      "variations": {"on": {"key": "on", "value": "yes"}},
      "allocations": []
    }
  },
  "bandits": {
    "shoe-bandit": [
      {"key": "shoe-bandit", "flagKey": "valid-flag", "variationKey": "bandit", "variationValue": "shoe-bandit"}
    ]
  }
}`

const ValidBandits = `{
  "bandits": {
    "shoe-bandit": {
      "banditKey": "shoe-bandit",
      "modelName": "falcon",
      "modelVersion": "v7",
      "modelData": {"gamma": 1, "defaultActionScore": 0, "actionProbabilityFloor": 0, "coefficients": {}}
    }
  }
}`

func buildConfiguration(t *testing.T, flags string, logger log.FieldLogger) *Configuration {
	t.Helper()
	ufc, err := ParseUniversalFlagConfig([]byte(flags))
	require.NoError(t, err)
	bandits, err := ParseBanditResponse([]byte(ValidBandits))
	require.NoError(t, err)
	return FromServerResponse(ufc, bandits, logger)
}

func TestFromServerResponse_BrokenFlag_KeptAndLoggedOnce(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg := buildConfiguration(t, ValidFlags, logger)

	valid, ok := cfg.GetFlag("valid-flag")
	require.True(t, ok)
	assert.True(t, valid.Ok())

	invalid, ok := cfg.GetFlag("invalid-flag")
	require.True(t, ok)
	assert.False(t, invalid.Ok())
	assert.Error(t, invalid.Err)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "invalid-flag", hook.LastEntry().Data["flag"])
}

func TestConfiguration_GetFlag_Unknown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := buildConfiguration(t, ValidFlags, logger)

	_, ok := cfg.GetFlag("nope")
	assert.False(t, ok)
}

func TestConfiguration_BanditLookups(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := buildConfiguration(t, ValidFlags, logger)

	key, ok := cfg.GetBanditKey("valid-flag", "shoe-bandit")
	require.True(t, ok)
	assert.Equal(t, "shoe-bandit", key)

	_, ok = cfg.GetBanditKey("valid-flag", "other-value")
	assert.False(t, ok)
	_, ok = cfg.GetBanditKey("invalid-flag", "shoe-bandit")
	assert.False(t, ok)

	b, ok := cfg.GetBandit("shoe-bandit")
	require.True(t, ok)
	assert.Equal(t, "v7", b.ModelVersion)
	require.NotNil(t, b.ModelData)
	assert.Equal(t, 1.0, b.ModelData.Gamma)

	_, ok = cfg.GetBandit("missing")
	assert.False(t, ok)
}

func TestConfiguration_NoBanditDocument_BanditsUnavailable(t *testing.T) {
	ufc, err := ParseUniversalFlagConfig([]byte(ValidFlags))
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	cfg := FromServerResponse(ufc, nil, logger)

	_, ok := cfg.GetBandit("shoe-bandit")
	assert.False(t, ok)
	assert.Equal(t, 0, cfg.Metadata().Bandits)
}

func TestConfiguration_Metadata(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := buildConfiguration(t, ValidFlags, logger)

	md := cfg.Metadata()
	assert.Equal(t, "Production", md.Environment)
	assert.Equal(t, 2, md.Flags)
	assert.Equal(t, []string{"invalid-flag"}, md.FailedFlags)
	assert.Equal(t, 1, md.Bandits)
	assert.Equal(t, 2024, md.CreatedAt.Year())
	assert.False(t, md.FetchedAt.IsZero())
	assert.Equal(t, []string{"invalid-flag", "valid-flag"}, cfg.FlagKeys())
}

func TestParseUniversalFlagConfig_MalformedEnvelope_Error(t *testing.T) {
	_, err := ParseUniversalFlagConfig([]byte(`{"flags": [`))
	assert.Error(t, err)

	_, err = ParseBanditResponse([]byte(`[]`))
	assert.Error(t, err)
}

func TestFromServerResponse_EmptyDocument_NoFlags(t *testing.T) {
	ufc, err := ParseUniversalFlagConfig([]byte(`{"flags": {}}`))
	require.NoError(t, err)
	cfg := FromServerResponse(ufc, nil, nil)

	assert.Empty(t, cfg.FlagKeys())
	_, ok := cfg.GetFlag("anything")
	assert.False(t, ok)
}
