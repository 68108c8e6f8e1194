package common

import "io"

// Context bundles the ambient dependencies (config, logging, lifecycle)
// every long-lived netio component is built with. Sub derives a child
// context whose Control is tied to the parent's (closing the parent
// closes every descendant) and whose Logger is scoped with name.
type Context interface {
	io.Closer

	Config() Config
	Logger() Logger
	Control() Control
	Sub(name string) Context
}

type ctx struct {
	config Config
	logger Logger
	ctrl   Control
}

// NewContext builds a root Context from config.
func NewContext(config Config) Context {
	return &ctx{
		config: config,
		logger: NewStandardLogger(config),
		ctrl:   NewControl(nil),
	}
}

func (c *ctx) Close() error {
	return c.ctrl.Close()
}

func (c *ctx) Config() Config {
	return c.config
}

func (c *ctx) Logger() Logger {
	return c.logger
}

func (c *ctx) Control() Control {
	return c.ctrl
}

func (c *ctx) Sub(name string) Context {
	return &ctx{
		config: c.config,
		logger: NewFormattedLogger(c.logger, name),
		ctrl:   c.ctrl.Sub(),
	}
}
