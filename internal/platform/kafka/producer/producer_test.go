package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBrokers(t *testing.T) {
	_, err := New(Config{Brokers: " , "}, nil)
	assert.EqualError(t, err, "kafka brokers not configured")
}

func TestNew_ClientIsLazy(t *testing.T) {
	// kgo does not dial on construction, so an unreachable broker still builds a client.
	p, err := New(Config{Brokers: "127.0.0.1:1", ClientID: "merch-test", Acks: "1"}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
