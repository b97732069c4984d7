package embedding

// ONNXConfig describes an exported vision tower (for example SigLIP2 image features)
// that maps a [1, 3, ImageSize, ImageSize] float tensor to a [1, Dimensions] embedding.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	ImageSize  int
	InputName  string
	OutputName string
	Mean       [3]float32
	Std        [3]float32
}

func (c *ONNXConfig) applyDefaults() {
	if c.ImageSize <= 0 {
		c.ImageSize = 512
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 768
	}
	if c.InputName == "" {
		c.InputName = "pixel_values"
	}
	if c.OutputName == "" {
		c.OutputName = "image_embeds"
	}
	for i := range c.Std {
		if c.Std[i] == 0 {
			c.Std[i] = 0.5
			if c.Mean[i] == 0 {
				c.Mean[i] = 0.5
			}
		}
	}
}
