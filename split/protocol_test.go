package split

import (
	"bytes"
	"io"
	"testing"

	"epsnet/core/ckkswrapper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	ctBytes := []byte("test ciphertext data")
	err := writer.SendForward(ForwardPayload{RequestID: "req-1", BatchID: 1, Ciphertext: ctBytes, Level: 5, ScaleFloat: 1.234})
	if err != nil {
		t.Fatalf("SendForward failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	payload, err := reader.ReceiveForward()
	if err != nil {
		t.Fatalf("ReceiveForward failed: %v", err)
	}

	if payload.BatchID != 1 {
		t.Errorf("BatchID = %d, want 1", payload.BatchID)
	}
	if payload.Level != 5 {
		t.Errorf("Level = %d, want 5", payload.Level)
	}
	if payload.ScaleFloat != 1.234 {
		t.Errorf("ScaleFloat = %f, want 1.234", payload.ScaleFloat)
	}
	if payload.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", payload.RequestID)
	}
	if !bytes.Equal(payload.Ciphertext, ctBytes) {
		t.Errorf("Ciphertext mismatch")
	}
}

func TestProtocolHandshake(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	require.NoError(t, writer.SendHello(HelloPayload{InDim: 36, OutDim: 64, Levels: 2, Rotations: []int{1, -1}}))
	lit := ckkswrapper.LiteralForLogN(13)
	require.NoError(t, writer.SendKeys(lit, []byte{1, 2, 3}))

	reader := NewProtocol(&buf, nil)
	hello, err := reader.ReceiveHello()
	require.NoError(t, err)
	assert.Equal(t, 36, hello.InDim)
	assert.Equal(t, []int{1, -1}, hello.Rotations)

	keys, err := reader.ReceiveKeys()
	require.NoError(t, err)
	assert.Equal(t, lit, keys.Literal)
	assert.Equal(t, []byte{1, 2, 3}, keys.EvalKeys)
}

func TestProtocolUnexpectedType(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	require.NoError(t, writer.SendHello(HelloPayload{}))

	reader := NewProtocol(&buf, nil)
	_, err := reader.ReceiveKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got hello")
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendDone()
	if err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err = reader.ReceiveForward()
	if err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendError(io.ErrUnexpectedEOF)
	if err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err = reader.ReceiveForward()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote error: unexpected EOF")
}

func TestProtocolWithoutStreams(t *testing.T) {
	assert.Error(t, NewProtocol(nil, nil).SendDone())
	_, err := NewProtocol(nil, nil).Receive()
	assert.Error(t, err)
}

func TestMessageTypes(t *testing.T) {
	if MsgHello != 0 {
		t.Errorf("MsgHello = %d, want 0", MsgHello)
	}
	if MsgForwardInput != 2 {
		t.Errorf("MsgForwardInput = %d, want 2", MsgForwardInput)
	}
	if MsgError != 5 {
		t.Errorf("MsgError = %d, want 5", MsgError)
	}
	assert.Equal(t, "forward_output", MsgForwardOutput.String())
}
