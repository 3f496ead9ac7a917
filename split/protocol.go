// Package split runs the first Linear layer of a regression head on an
// untrusted server over CKKS ciphertexts while the client keeps the secret
// key and evaluates the rest of the network in plaintext.
package split

import (
	"encoding/gob"
	"fmt"
	"io"

	"epsnet/core/ckkswrapper"
)

func init() {
	// Register types for gob encoding
	gob.Register(HelloPayload{})
	gob.Register(KeysPayload{})
	gob.Register(ForwardPayload{})
}

// MessageType defines message types for the split inference protocol
type MessageType int

const (
	MsgHello MessageType = iota
	MsgKeys
	MsgForwardInput
	MsgForwardOutput
	MsgDone
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "hello"
	case MsgKeys:
		return "keys"
	case MsgForwardInput:
		return "forward_input"
	case MsgForwardOutput:
		return "forward_output"
	case MsgDone:
		return "done"
	case MsgError:
		return "error"
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Message represents a message in the split inference protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// HelloPayload describes the server-side layer. Rotations lists the slot
// rotations the client must generate Galois keys for.
type HelloPayload struct {
	InDim     int
	OutDim    int
	Levels    int
	Rotations []int
}

// KeysPayload carries the client's CKKS parameters and serialized
// evaluation keys (relinearization plus Galois keys).
type KeysPayload struct {
	Literal  ckkswrapper.Literal
	EvalKeys []byte
}

// ForwardPayload contains one encrypted sample or layer output
type ForwardPayload struct {
	RequestID  string
	BatchID    int
	Ciphertext []byte // serialized ciphertext
	Level      int
	ScaleFloat float64
}

// Protocol handles split inference communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	if p.encoder == nil {
		return fmt.Errorf("protocol has no writer")
	}
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	if p.decoder == nil {
		return nil, fmt.Errorf("protocol has no reader")
	}
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// receiveExpect receives a message and checks its type. MsgError becomes a
// remote error and MsgDone becomes io.EOF.
func (p *Protocol) receiveExpect(want ...MessageType) (*Message, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgError:
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	}
	for _, t := range want {
		if msg.Type == t {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("expected %v message, got %v", want, msg.Type)
}

// SendHello announces the server layer
func (p *Protocol) SendHello(h HelloPayload) error {
	return p.Send(&Message{Type: MsgHello, Payload: h})
}

// ReceiveHello receives the server announcement
func (p *Protocol) ReceiveHello() (*HelloPayload, error) {
	msg, err := p.receiveExpect(MsgHello)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(HelloPayload)
	if !ok {
		return nil, fmt.Errorf("invalid hello payload type")
	}
	return &payload, nil
}

// SendKeys sends the client's parameters and evaluation keys
func (p *Protocol) SendKeys(lit ckkswrapper.Literal, evk []byte) error {
	return p.Send(&Message{Type: MsgKeys, Payload: KeysPayload{Literal: lit, EvalKeys: evk}})
}

// ReceiveKeys receives the client's parameters and evaluation keys
func (p *Protocol) ReceiveKeys() (*KeysPayload, error) {
	msg, err := p.receiveExpect(MsgKeys)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(KeysPayload)
	if !ok {
		return nil, fmt.Errorf("invalid keys payload type")
	}
	return &payload, nil
}

// SendForward sends an encrypted sample to the server
func (p *Protocol) SendForward(fp ForwardPayload) error {
	return p.Send(&Message{Type: MsgForwardInput, Payload: fp})
}

// SendForwardOutput sends the encrypted layer output back to the client
func (p *Protocol) SendForwardOutput(fp ForwardPayload) error {
	return p.Send(&Message{Type: MsgForwardOutput, Payload: fp})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// ReceiveForward receives a forward input or output payload
func (p *Protocol) ReceiveForward() (*ForwardPayload, error) {
	msg, err := p.receiveExpect(MsgForwardInput, MsgForwardOutput)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(ForwardPayload)
	if !ok {
		return nil, fmt.Errorf("invalid forward payload type")
	}
	return &payload, nil
}
