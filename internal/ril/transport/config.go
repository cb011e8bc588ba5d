package transport

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/frame"
	"github.com/danmuck/rilbridge/internal/ril/powerlock"
	"github.com/danmuck/rilbridge/internal/ril/registry"
)

const (
	DefaultSocketDir  = "/dev/socket"
	DefaultSocketName = "rild"
)

// WakeLockConfig selects the physical wake lock resources.
type WakeLockConfig struct {
	Enabled     bool
	SysfsDir    string
	RequestName string
	AckName     string
}

// Config defines transport reliability defaults.
type Config struct {
	SocketDir string
	// SocketName overrides the instance-derived name when set.
	SocketName string
	Instance   int

	MaxFrameBytes  uint32
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// ReconnectInterval separates failed connect attempts. A broken
	// connection is redialed at once.
	ReconnectInterval time.Duration
	// ConnectLogThreshold is the number of failed connects logged at info
	// before the retry loop goes quiet.
	ConnectLogThreshold int

	RequestLockTimeout time.Duration
	AckLockTimeout     time.Duration
	BlockingTimeout    time.Duration
	AckMinVersion      int32

	SubscriberBuffer int
	// PoolCapacity bounds recycled request records; 0 disables reuse.
	PoolCapacity int

	WakeLock WakeLockConfig
}

// DefaultConfig returns the daemon's stock timings: fixed 4s reconnect,
// 60s request lock, 200ms ack lock, 2s blocking-call fallback.
func DefaultConfig() Config {
	return Config{
		SocketDir:           DefaultSocketDir,
		MaxFrameBytes:       frame.DefaultMaxPayloadBytes,
		ConnectTimeout:      5 * time.Second,
		WriteTimeout:        15 * time.Second,
		ConnectLogThreshold: 8,
		ReconnectInterval:   4 * time.Second,
		RequestLockTimeout:  powerlock.DefaultRequestTimeout,
		AckLockTimeout:      powerlock.DefaultAckTimeout,
		BlockingTimeout:     2 * time.Second,
		AckMinVersion:       ril.AckMinVersion,
		SubscriberBuffer:    64,
		PoolCapacity:        registry.DefaultPoolCapacity,
		WakeLock: WakeLockConfig{
			SysfsDir:    powerlock.DefaultSysfsDir,
			RequestName: "RILJ",
			AckName:     "RILJ_ACK_WL",
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.SocketDir) == "" {
		c.SocketDir = def.SocketDir
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = def.MaxFrameBytes
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = def.ReconnectInterval
	}
	if c.ConnectLogThreshold <= 0 {
		c.ConnectLogThreshold = def.ConnectLogThreshold
	}
	if c.RequestLockTimeout <= 0 {
		c.RequestLockTimeout = def.RequestLockTimeout
	}
	if c.AckLockTimeout <= 0 {
		c.AckLockTimeout = def.AckLockTimeout
	}
	if c.BlockingTimeout <= 0 {
		c.BlockingTimeout = def.BlockingTimeout
	}
	if c.AckMinVersion <= 0 {
		c.AckMinVersion = def.AckMinVersion
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = def.SubscriberBuffer
	}
	if c.PoolCapacity < 0 {
		c.PoolCapacity = 0
	}
	if strings.TrimSpace(c.WakeLock.SysfsDir) == "" {
		c.WakeLock.SysfsDir = def.WakeLock.SysfsDir
	}
	if strings.TrimSpace(c.WakeLock.RequestName) == "" {
		c.WakeLock.RequestName = def.WakeLock.RequestName
	}
	if strings.TrimSpace(c.WakeLock.AckName) == "" {
		c.WakeLock.AckName = def.WakeLock.AckName
	}
	return c
}

// Name is the socket name: rild for instance 0, rild2, rild3, ... after that.
func (c Config) Name() string {
	if name := strings.TrimSpace(c.SocketName); name != "" {
		return name
	}
	if c.Instance <= 0 {
		return DefaultSocketName
	}
	return fmt.Sprintf("%s%d", DefaultSocketName, c.Instance+1)
}

// SocketPath is the filesystem path of the daemon socket.
func (c Config) SocketPath() string {
	return filepath.Join(c.SocketDir, c.Name())
}

func (c Config) Validate() error {
	if c.Instance < 0 {
		return fmt.Errorf("transport: instance must be >= 0, got %d", c.Instance)
	}
	if c.MaxFrameBytes < 8 {
		return fmt.Errorf("transport: max frame bytes too small: %d", c.MaxFrameBytes)
	}
	return nil
}

func (c Config) limits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxFrameBytes}
}
