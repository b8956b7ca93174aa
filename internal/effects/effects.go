package effects

// Processor transforms a mono sample stream, one sample at a time.
type Processor interface {
	Process(x float32) float32
	Reset()
}

// Chain applies a sequence of processors in order.
type Chain struct {
	stages []Processor
}

func NewChain(stages ...Processor) *Chain {
	return &Chain{stages: stages}
}

func (c *Chain) Process(x float32) float32 {
	for _, p := range c.stages {
		x = p.Process(x)
	}
	return x
}

func (c *Chain) Reset() {
	for _, p := range c.stages {
		p.Reset()
	}
}

func (c *Chain) Add(p Processor) {
	c.stages = append(c.stages, p)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
