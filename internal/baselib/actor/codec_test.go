package actor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testSecurity = DefaultSecurityConfig([]byte("codec-test-key"))

func rapidAddress(t *rapid.T, label string) Address {
	return Address{
		ID:   rapid.StringMatching(`[a-z0-9]{1,16}`).Draw(t, label+"-id"),
		Host: rapid.SampledFrom([]string{"127.0.0.1", "10.0.0.5", "relay-host"}).Draw(t, label+"-host"),
		Port: rapid.IntRange(0, 65535).Draw(t, label+"-port"),
	}
}

// TestCodecEncodeDecodeRoundTrip verifies that for any sender, target, and
// payload text, Decode(Encode(...)) recovers the same sender id/host/port,
// target id, and payload value.
func TestCodecEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sender := rapidAddress(t, "sender")
		target := rapidAddress(t, "target")
		text := rapid.String().Draw(t, "text")

		payload := &echoMsg{Text: text}

		frame, err := Encode(payload, sender, target, testSecurity)
		require.NoError(t, err)

		decoded, err := Decode(frame, testSecurity)
		require.NoError(t, err)

		require.Equal(t, sender.ID, decoded.Sender.ID)
		require.Equal(t, sender.Host, decoded.Sender.Host)
		require.Equal(t, sender.Port, decoded.Sender.Port)
		require.Equal(t, target.ID, decoded.TargetID)

		got, ok := decoded.Payload.(*echoMsg)
		require.True(t, ok)
		require.Equal(t, text, got.Text)
	})
}

// TestCodecDecodeRejectsTamperedFrame verifies that flipping any single byte
// of a valid frame (magic, signature, length, separator or body) causes
// Decode to return an error rather than silently accepting a corrupted
// frame.
func TestCodecDecodeRejectsTamperedFrame(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sender := rapidAddress(t, "sender")
		target := rapidAddress(t, "target")

		frame, err := Encode(&echoMsg{Text: "payload"}, sender, target, testSecurity)
		require.NoError(t, err)

		tampered := make([]byte, len(frame))
		copy(tampered, frame)

		flipIdx := rapid.IntRange(0, len(tampered)-1).Draw(t, "flip-idx")
		tampered[flipIdx] ^= 0xFF

		_, err = Decode(tampered, testSecurity)
		require.Error(t, err)
	})
}

// TestCodecDecodeRejectsWrongKey verifies that a frame signed under one
// shared secret fails to authenticate under a different one.
func TestCodecDecodeRejectsWrongKey(t *testing.T) {
	t.Parallel()

	sender := NewAddress("127.0.0.1", 9000)
	target := NewAddress("127.0.0.1", 9001)

	frame, err := Encode(&echoMsg{Text: "secret"}, sender, target, testSecurity)
	require.NoError(t, err)

	wrongKey := DefaultSecurityConfig([]byte("a-completely-different-key"))
	_, err = Decode(frame, wrongKey)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

// TestCodecDecodeRejectsOversizedBody verifies that a frame whose declared
// body length exceeds the configured buffer size is rejected before the
// body is even compared, regardless of whether the signature would have
// verified.
func TestCodecDecodeRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	tiny := testSecurity
	tiny.BufferSize = 8

	sender := NewAddress("127.0.0.1", 9000)
	target := NewAddress("127.0.0.1", 9001)

	frame, err := Encode(&echoMsg{Text: "this body is longer than eight bytes"}, sender, target, testSecurity)
	require.NoError(t, err)

	_, err = Decode(frame, tiny)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

// TestCodecDecodeRejectsMalformedFrame verifies that arbitrary non-frame
// byte strings are rejected with an error rather than causing a panic.
func TestCodecDecodeRejectsMalformedFrame(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		garbage := []byte(rapid.String().Draw(t, "garbage"))

		var err error
		require.NotPanics(t, func() {
			_, err = Decode(garbage, testSecurity)
		})
		require.Error(t, err)
	})
}
