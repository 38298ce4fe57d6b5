package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	codec := NewStateCodec("secret", 5*time.Minute)
	for _, id := range []string{"14155550100", "442079460958", "8613800138000"} {
		state, err := codec.Encode(id)
		require.NoError(t, err)
		got, err := codec.Decode(state)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestStateEncodeRejectsInvalidIdentity(t *testing.T) {
	codec := NewStateCodec("secret", 5*time.Minute)
	_, err := codec.Encode("+14155550100")
	assert.Error(t, err)
	_, err = codec.Encode("")
	assert.Error(t, err)
}

func TestStateDecodeRejectsForeignEncodings(t *testing.T) {
	codec := NewStateCodec("secret", 5*time.Minute)
	// Observed legacy variants: key=value pairs, raw digits, ad hoc
	// prefixes. None of them are the canonical encoding.
	for _, state := range []string{
		"whatsapp=14155550100",
		"14155550100",
		"p:14155550100",
		"",
		"not-a-jwt",
	} {
		_, err := codec.Decode(state)
		assert.ErrorIs(t, err, ErrInvalidState, "state %q must be rejected", state)
	}
}

func TestStateDecodeRejectsTampering(t *testing.T) {
	codec := NewStateCodec("secret", 5*time.Minute)
	other := NewStateCodec("different-secret", 5*time.Minute)

	state, err := other.Encode("14155550100")
	require.NoError(t, err)
	_, err = codec.Decode(state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateDecodeRejectsExpired(t *testing.T) {
	codec := NewStateCodec("secret", 5*time.Minute)
	issued := time.Now().Add(-time.Hour)
	codec.now = func() time.Time { return issued }
	state, err := codec.Encode("14155550100")
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Decode(state)
	assert.ErrorIs(t, err, ErrInvalidState)
}
