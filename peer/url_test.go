package peer

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURLAcceptsWellFormedPeerURL(t *testing.T) {
	u, err := url.Parse("ws://d290f1ee-6c54-4b01-90e6-d701748f0851@peer.example:9000/")
	require.NoError(t, err)

	uuid, err := ValidateURL(u)
	require.NoError(t, err)
	assert.Equal(t, "d290f1ee-6c54-4b01-90e6-d701748f0851", uuid)
}

func TestValidateURLRejectsMissingHost(t *testing.T) {
	u, err := url.Parse("ws://d290f1ee-6c54-4b01-90e6-d701748f0851@:9000/")
	require.NoError(t, err)
	_, err = ValidateURL(u)
	assert.Error(t, err)
}

func TestValidateURLRejectsZeroPort(t *testing.T) {
	u, err := url.Parse("ws://d290f1ee-6c54-4b01-90e6-d701748f0851@peer.example:0/")
	require.NoError(t, err)
	_, err = ValidateURL(u)
	assert.Error(t, err)
}

func TestValidateURLRejectsMissingPort(t *testing.T) {
	u, err := url.Parse("ws://d290f1ee-6c54-4b01-90e6-d701748f0851@peer.example/")
	require.NoError(t, err)
	_, err = ValidateURL(u)
	assert.Error(t, err)
}

func TestValidateURLRejectsNonUUIDUser(t *testing.T) {
	u, err := url.Parse("ws://not-a-uuid@peer.example:9000/")
	require.NoError(t, err)
	_, err = ValidateURL(u)
	assert.Error(t, err)
}

func TestValidateURLRejectsMissingUser(t *testing.T) {
	u, err := url.Parse("ws://peer.example:9000/")
	require.NoError(t, err)
	_, err = ValidateURL(u)
	assert.Error(t, err)
}

func TestHasIncomingPort(t *testing.T) {
	withPort, _ := url.Parse("ws://x@host:9000/")
	withoutPort, _ := url.Parse("ws://x@host/")
	zeroPort, _ := url.Parse("ws://x@host:0/")

	assert.True(t, HasIncomingPort(withPort))
	assert.False(t, HasIncomingPort(withoutPort))
	assert.False(t, HasIncomingPort(zeroPort))
}
