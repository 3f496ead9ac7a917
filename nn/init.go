package nn

import (
	"math"
	"math/rand"

	"epsnet/tensor"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewRand returns a seeded source for weight initialization and dropout
// masks. Every layer draws from the *rand.Rand it is handed, so two models
// built from equal seeds are identical.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// InitUniform fills t with samples from U(-bound, bound).
func InitUniform(t *tensor.Tensor, bound float64, rng *rand.Rand) {
	dist := distuv.Uniform{
		Min: -bound,
		Max: bound,
		Src: exprand.NewSource(rng.Uint64()),
	}
	for i := range t.Data {
		t.Data[i] = dist.Rand()
	}
}

// FanInBound is the default PyTorch bound for Linear and Conv2d weights and
// biases (kaiming_uniform with a=sqrt(5) reduces to 1/sqrt(fan_in)).
func FanInBound(fanIn int) float64 {
	if fanIn <= 0 {
		return 0
	}
	return 1 / math.Sqrt(float64(fanIn))
}
