package singan

import (
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	s, err := c.Schedule()
	if err != nil {
		t.Fatal(err)
	}
	if s.NumScale != 8 {
		t.Errorf("unexpected scale count: %d", s.NumScale)
	}
}

func TestConfigValidate(t *testing.T) {
	mutations := map[string]func(c *Config){
		"SizeBounds": func(c *Config) { c.ImgSizeMin = c.ImgSizeMax },
		"Channels":   func(c *Config) { c.Channels = 2 },
		"Batch":      func(c *Config) { c.BatchSize = 0 },
		"GANType":    func(c *Config) { c.GANType = "wgangp" },
		"ZeroGP":     func(c *Config) { c.GANType = "zerogp" },
		"Decay":      func(c *Config) { c.DecayFactor = 2 },
		"Upscale":    func(c *Config) { c.SRUpscale = 0 },
	}
	for name, mutate := range mutations {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("%s: expected configuration error but got %v", name, err)
		}
	}
}
