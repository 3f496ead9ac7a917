package split

import (
	"fmt"
	"io"
	"time"

	"epsnet/core/ckkswrapper"
	"epsnet/nn"
	"epsnet/tensor"
	"epsnet/utils"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"go.uber.org/zap"
)

// Client holds the secret key, sends encrypted samples to a Server and runs
// the plaintext tail of the network on the decrypted first-layer output.
type Client struct {
	proto  *Protocol
	he     *ckkswrapper.HeContext
	hello  HelloPayload
	tail   *nn.Sequential
	logger *zap.Logger
	batch  int

	Stats utils.TimingStats
}

// NewClient performs the handshake on conn: it reads the server's layer
// description, generates the Galois keys it asks for and sends the
// evaluation keys. tail may be nil, in which case Predict returns the
// first-layer output.
func NewClient(conn io.ReadWriter, he *ckkswrapper.HeContext, tail *nn.Sequential, logger *zap.Logger) (*Client, error) {
	c := &Client{
		proto:  NewProtocol(conn, conn),
		he:     he,
		tail:   tail,
		logger: utils.OrNop(logger),
	}
	hello, err := c.proto.ReceiveHello()
	if err != nil {
		return nil, fmt.Errorf("receive hello: %w", err)
	}
	slots := he.Params.MaxSlots()
	if hello.InDim > slots || hello.OutDim > slots {
		return nil, fmt.Errorf("server layer %d→%d does not fit in %d slots", hello.InDim, hello.OutDim, slots)
	}
	if he.Params.MaxLevel() < hello.Levels {
		return nil, fmt.Errorf("server layer needs %d levels, parameters provide %d", hello.Levels, he.Params.MaxLevel())
	}
	c.hello = *hello

	start := time.Now()
	kit := he.GenServerKit(hello.Rotations)
	evk, err := kit.MarshalEvaluationKeys()
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation keys: %w", err)
	}
	c.Stats.HEInitTime += time.Since(start)
	if err := c.proto.SendKeys(he.Literal, evk); err != nil {
		return nil, fmt.Errorf("send keys: %w", err)
	}
	c.logger.Info("handshake complete",
		zap.Int("in_dim", hello.InDim),
		zap.Int("out_dim", hello.OutDim),
		zap.Int("rotations", len(hello.Rotations)),
		zap.Int("eval_key_bytes", len(evk)),
	)
	return c, nil
}

// Hello is the server's layer description.
func (c *Client) Hello() HelloPayload { return c.hello }

// ForwardFirst evaluates the server's layer on x (B, InDim), one encrypted
// sample per round trip, and returns the decrypted (B, OutDim) result.
func (c *Client) ForwardFirst(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() != 2 || x.Shape[1] != c.hello.InDim {
		return nil, fmt.Errorf("%w: split client expects (batch, %d), got %v", tensor.ErrShape, c.hello.InDim, x.Shape)
	}
	batch := x.Shape[0]
	out := tensor.New(batch, c.hello.OutDim)
	c.batch++
	for b := 0; b < batch; b++ {
		row, err := c.roundTrip(x.Row(b))
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", b, err)
		}
		copy(out.Row(b), row)
	}
	return out, nil
}

func (c *Client) roundTrip(sample []float64) ([]float64, error) {
	start := time.Now()
	ct, err := c.he.EncryptVector(sample)
	if err != nil {
		return nil, err
	}
	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}
	c.Stats.EncryptionTime += time.Since(start)

	start = time.Now()
	reqID := uuid.NewString()
	if err := c.proto.SendForward(ForwardPayload{
		RequestID:  reqID,
		BatchID:    c.batch,
		Ciphertext: ctBytes,
		Level:      ct.Level(),
		ScaleFloat: ct.Scale.Float64(),
	}); err != nil {
		return nil, fmt.Errorf("send forward: %w", err)
	}
	resp, err := c.proto.ReceiveForward()
	if err != nil {
		return nil, fmt.Errorf("receive forward: %w", err)
	}
	c.Stats.ServerTime += time.Since(start)
	if resp.RequestID != reqID {
		return nil, fmt.Errorf("response for request %s, expected %s", resp.RequestID, reqID)
	}

	start = time.Now()
	ctOut := new(rlwe.Ciphertext)
	if err := ctOut.UnmarshalBinary(resp.Ciphertext); err != nil {
		return nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}
	vals, err := c.he.DecryptVector(ctOut, c.hello.OutDim)
	if err != nil {
		return nil, err
	}
	c.Stats.DecryptionTime += time.Since(start)
	return vals, nil
}

// Predict runs the whole network: the server's layer under encryption, then
// the local tail in Eval mode.
func (c *Client) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	hidden, err := c.ForwardFirst(x)
	if err != nil {
		return nil, err
	}
	if c.tail == nil {
		return hidden, nil
	}
	start := time.Now()
	defer utils.Track(start, &c.Stats.ClientTailTime)
	return c.tail.Forward(hidden, nn.Eval)
}

// Close tells the server the session is over. It does not close the
// underlying connection.
func (c *Client) Close() error {
	return c.proto.SendDone()
}
