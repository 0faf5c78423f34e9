package ui

// Config contains window/input/audio related settings.
type Config struct {
	Title           string // window title
	Scale           int    // integer upscaling factor off the 240x160 frame
	AudioBufferMs   int    // not read by App: the player buffer is 40 ms, or 20 ms with AudioLowLatency
	AudioLowLatency bool   // hard-cap buffering for minimal latency
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbacore"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 60
	}
}
