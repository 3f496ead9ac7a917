package layers

import (
	"fmt"
	"math"

	"epsnet/nn"
	"epsnet/tensor"
)

// MaxPool2D takes the maximum over non-overlapping Kernel×Kernel windows
// (stride equals kernel). Trailing rows and columns that do not fill a window
// are dropped.
type MaxPool2D struct {
	Kernel int
}

// NewMaxPool2D returns a pooling layer with the given window size.
func NewMaxPool2D(kernel int) (*MaxPool2D, error) {
	if kernel <= 0 {
		return nil, fmt.Errorf("invalid pool kernel %d", kernel)
	}
	return &MaxPool2D{Kernel: kernel}, nil
}

// OutputSize is floor(in / Kernel).
func (m *MaxPool2D) OutputSize(in int) int { return in / m.Kernel }

// Forward pools a (B, C, H, W) batch into (B, C, H/k, W/k).
func (m *MaxPool2D) Forward(x *tensor.Tensor, _ nn.Mode) (*tensor.Tensor, error) {
	if x.Rank() != 4 {
		return nil, fmt.Errorf("%w: %s expects (batch, c, h, w), got shape %v", tensor.ErrShape, m.Tag(), x.Shape)
	}
	batch, ch, inH, inW := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	outH, outW := m.OutputSize(inH), m.OutputSize(inW)
	if outH < 1 || outW < 1 {
		return nil, fmt.Errorf("%w: %s input %dx%d smaller than window", tensor.ErrShape, m.Tag(), inH, inW)
	}
	k := m.Kernel
	out := tensor.New(batch, ch, outH, outW)
	for p := 0; p < batch*ch; p++ {
		inPlane := x.Data[p*inH*inW : (p+1)*inH*inW]
		outPlane := out.Data[p*outH*outW : (p+1)*outH*outW]
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				best := math.Inf(-1)
				for dy := 0; dy < k; dy++ {
					row := inPlane[(oy*k+dy)*inW:]
					for dx := 0; dx < k; dx++ {
						if v := row[ox*k+dx]; v > best {
							best = v
						}
					}
				}
				outPlane[oy*outW+ox] = best
			}
		}
	}
	return out, nil
}

// Tag identifies the layer.
func (m *MaxPool2D) Tag() string { return fmt.Sprintf("MaxPool2D_%d", m.Kernel) }
