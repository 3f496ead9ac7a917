package layers

import (
	"fmt"
	"math/rand"

	"epsnet/nn"
	"epsnet/tensor"
)

// Conv2D is a square-kernel 2-D convolution over (B, C, H, W) inputs with
// symmetric zero padding.
type Conv2D struct {
	InChan, OutChan int
	Kernel          int
	Stride          int
	Padding         int

	W *tensor.Tensor // (OutChan, InChan, Kernel, Kernel)
	B *tensor.Tensor // (OutChan)
}

// NewConv2D allocates a convolution and draws weights and bias from
// U(-1/√fan_in, 1/√fan_in) with fan_in = InChan·Kernel². A nil rng leaves
// them zero.
func NewConv2D(inChan, outChan, kernel, stride, padding int, rng *rand.Rand) (*Conv2D, error) {
	if inChan <= 0 || outChan <= 0 || kernel <= 0 || stride <= 0 || padding < 0 {
		return nil, fmt.Errorf("invalid conv2d geometry: in=%d out=%d kernel=%d stride=%d padding=%d",
			inChan, outChan, kernel, stride, padding)
	}
	c := &Conv2D{
		InChan:  inChan,
		OutChan: outChan,
		Kernel:  kernel,
		Stride:  stride,
		Padding: padding,
		W:       tensor.New(outChan, inChan, kernel, kernel),
		B:       tensor.New(outChan),
	}
	if rng != nil {
		bound := nn.FanInBound(inChan * kernel * kernel)
		nn.InitUniform(c.W, bound, rng)
		nn.InitUniform(c.B, bound, rng)
	}
	return c, nil
}

// ConvOutputSize is floor((in - (kernel-1) + 2·padding - 1) / stride) + 1,
// the spatial size produced by a dilation-1 convolution. It returns a value
// below 1 when the input is too small for the kernel.
func ConvOutputSize(in, kernel, stride, padding int) int {
	num := in - (kernel - 1) + 2*padding - 1
	if num < 0 {
		return 0
	}
	return num/stride + 1
}

// OutputSize is the spatial size this layer produces for a side of length in.
func (c *Conv2D) OutputSize(in int) int {
	return ConvOutputSize(in, c.Kernel, c.Stride, c.Padding)
}

// Forward convolves a (B, InChan, H, W) batch into (B, OutChan, H', W').
func (c *Conv2D) Forward(x *tensor.Tensor, _ nn.Mode) (*tensor.Tensor, error) {
	if x.Rank() != 4 || x.Shape[1] != c.InChan {
		return nil, fmt.Errorf("%w: %s expects (batch, %d, h, w), got shape %v", tensor.ErrShape, c.Tag(), c.InChan, x.Shape)
	}
	batch, inH, inW := x.Shape[0], x.Shape[2], x.Shape[3]
	outH, outW := c.OutputSize(inH), c.OutputSize(inW)
	if outH < 1 || outW < 1 {
		return nil, fmt.Errorf("%w: %s input %dx%d smaller than kernel", tensor.ErrShape, c.Tag(), inH, inW)
	}

	k, s, p := c.Kernel, c.Stride, c.Padding
	out := tensor.New(batch, c.OutChan, outH, outW)
	inPlaneSize, outPlaneSize := inH*inW, outH*outW
	for b := 0; b < batch; b++ {
		for oc := 0; oc < c.OutChan; oc++ {
			outPlane := out.Data[(b*c.OutChan+oc)*outPlaneSize : (b*c.OutChan+oc+1)*outPlaneSize]
			bias := c.B.Data[oc]
			for i := range outPlane {
				outPlane[i] = bias
			}
			for ic := 0; ic < c.InChan; ic++ {
				inPlane := x.Data[(b*c.InChan+ic)*inPlaneSize : (b*c.InChan+ic+1)*inPlaneSize]
				wBase := (oc*c.InChan + ic) * k * k
				for dy := 0; dy < k; dy++ {
					for dx := 0; dx < k; dx++ {
						w := c.W.Data[wBase+dy*k+dx]
						if w == 0 {
							continue
						}
						for oy := 0; oy < outH; oy++ {
							iy := oy*s + dy - p
							if iy < 0 || iy >= inH {
								continue
							}
							inRow := inPlane[iy*inW : (iy+1)*inW]
							outRow := outPlane[oy*outW : (oy+1)*outW]
							for ox := 0; ox < outW; ox++ {
								ix := ox*s + dx - p
								if ix < 0 || ix >= inW {
									continue
								}
								outRow[ox] += w * inRow[ix]
							}
						}
					}
				}
			}
		}
	}
	return out, nil
}

// Params returns weight and bias.
func (c *Conv2D) Params() []nn.Param {
	return []nn.Param{{Name: "weight", Value: c.W}, {Name: "bias", Value: c.B}}
}

// Tag identifies the layer.
func (c *Conv2D) Tag() string {
	return fmt.Sprintf("Conv2D_%d_%d_k%d_s%d_p%d", c.InChan, c.OutChan, c.Kernel, c.Stride, c.Padding)
}
