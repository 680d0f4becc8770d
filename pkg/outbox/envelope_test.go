package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelopeDefaultsVersion(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"eventId":"e-1","data":{"qty":1}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.True(t, env.HasData())
	assert.Empty(t, env.Source())

	env, err = ParseEnvelope([]byte(`{"version":2,"actor":{"source":"chatbot_auto"},"data":null}`))
	require.NoError(t, err)
	assert.Equal(t, 2, env.Version)
	assert.False(t, env.HasData())
	assert.Equal(t, "chatbot_auto", env.Source())

	_, err = ParseEnvelope([]byte(`not json`))
	assert.Error(t, err)
}
