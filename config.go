package loraterm

import "time"

// Default signature of the supported bridge (Silicon Labs CP210x).
const (
	DefaultVendorID  uint16 = 0x10C4
	DefaultProductID uint16 = 0xEA60

	DefaultActionTag = "loraterm.USB_PERMISSION"
)

// Config holds the configuration for a session
type Config struct {
	VendorID       uint16
	ProductID      uint16
	InEndpoint     int           // endpoint number for device-to-host bulk reads
	OutEndpoint    int           // endpoint number for host-to-device bulk writes
	ReadTimeout    time.Duration // bound of a single inbound transfer
	WriteTimeout   time.Duration // bound of a single outbound transfer
	PollInterval   time.Duration // pause between reader iterations
	ReadBufferSize int
	ActionTag      string // correlates permission requests with their responses
}

// Option is a functional option for configuring a session
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		VendorID:       DefaultVendorID,
		ProductID:      DefaultProductID,
		InEndpoint:     1,
		OutEndpoint:    1,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   1000 * time.Millisecond,
		PollInterval:   100 * time.Millisecond,
		ReadBufferSize: 1024,
		ActionTag:      DefaultActionTag,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) (Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return Config{}, err
		}
	}
	return config, nil
}

// WithVendorID sets the vendor identifier to match
func WithVendorID(id uint16) Option {
	return func(c *Config) error {
		if id == 0 {
			return ErrInvalidConfig
		}
		c.VendorID = id
		return nil
	}
}

// WithProductID sets the product identifier to match
func WithProductID(id uint16) Option {
	return func(c *Config) error {
		if id == 0 {
			return ErrInvalidConfig
		}
		c.ProductID = id
		return nil
	}
}

// WithEndpoints sets the inbound and outbound endpoint numbers (1-15)
func WithEndpoints(in, out int) Option {
	return func(c *Config) error {
		if in < 1 || in > 15 || out < 1 || out > 15 {
			return ErrInvalidConfig
		}
		c.InEndpoint = in
		c.OutEndpoint = out
		return nil
	}
}

// WithReadTimeout sets the timeout of each inbound transfer
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithWriteTimeout sets the timeout of each outbound transfer
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.WriteTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the pause between reader iterations
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval < 0 {
			return ErrInvalidConfig
		}
		c.PollInterval = interval
		return nil
	}
}

// WithReadBufferSize sets the capacity of the inbound buffer
func WithReadBufferSize(size int) Option {
	return func(c *Config) error {
		if size < 1 || size > 1<<16 {
			return ErrInvalidConfig
		}
		c.ReadBufferSize = size
		return nil
	}
}

// WithActionTag sets the tag used to correlate permission events
func WithActionTag(tag string) Option {
	return func(c *Config) error {
		if tag == "" {
			return ErrInvalidConfig
		}
		c.ActionTag = tag
		return nil
	}
}
