package configuration

import "time"

type Properties struct {
	App       AppProperties       `yaml:"app"`
	Transport TransportProperties `yaml:"transport"`
	Cluster   ClusterProperties   `yaml:"cluster"`
	Space     SpaceProperties     `yaml:"space"`
}

type AppProperties struct {
	Profile  string `yaml:"profile"`
	LogLevel string `yaml:"log-level"`
}

type TransportProperties struct {
	Address              string `yaml:"address"`
	ClientPort           string `yaml:"client-port"`
	RaftPort             string `yaml:"raft-port"`
	MetricsPort          string `yaml:"metrics-port"`
	Network              string `yaml:"network"`
	TimeoutMillis        uint64 `yaml:"timeout"`
	MaxConcurrentStreams uint32 `yaml:"max-concurrent-streams"`
}

type WriteAheadLogProperties struct {
	NoSync bool `yaml:"no-sync"`
}

type ClusterProperties struct {
	NodeID        uint64                  `yaml:"node-id"`
	DataDir       string                  `yaml:"data-dir"`
	Bootstrap     bool                    `yaml:"bootstrap"`
	TickInterval  time.Duration           `yaml:"tick-interval"`
	SnapCount     uint64                  `yaml:"snap-count"`
	ElectionTick  int                     `yaml:"election-tick"`
	HeartbeatTick int                     `yaml:"heartbeat-tick"`
	MaxSizePerMsg uint64                  `yaml:"max-size-per-msg"`
	MaxInflight   int                     `yaml:"max-inflight"`
	StepInboxSize int                     `yaml:"step-inbox-size"`
	Wal           WriteAheadLogProperties `yaml:"wal"`
}

type SpaceProperties struct {
	// RetryBackoff bounds how long a blocked in/rd waits before re-checking
	// even without a local insert, covering replication propagation lag.
	RetryBackoff time.Duration `yaml:"retry-backoff"`
	// PollInterval is the membership coordinator's run-state poll cadence.
	PollInterval time.Duration `yaml:"poll-interval"`
	ReadyTimeout time.Duration `yaml:"ready-timeout"`
}

func (t *TransportProperties) RaftAddr() string {
	return t.Address + ":" + t.RaftPort
}

func (t *TransportProperties) ClientAddr() string {
	return t.Address + ":" + t.ClientPort
}

func (t *TransportProperties) MetricsAddr() string {
	return t.Address + ":" + t.MetricsPort
}

func (t *TransportProperties) Timeout() time.Duration {
	return time.Duration(t.TimeoutMillis) * time.Millisecond
}

func (c *ClusterProperties) TickDuration() time.Duration {
	return c.TickInterval * time.Millisecond
}

func (s *SpaceProperties) RetryBackoffDuration() time.Duration {
	if s.RetryBackoff <= 0 {
		return 500 * time.Millisecond
	}
	return s.RetryBackoff * time.Millisecond
}

func (s *SpaceProperties) PollIntervalDuration() time.Duration {
	if s.PollInterval <= 0 {
		return time.Second
	}
	return s.PollInterval * time.Millisecond
}

func (s *SpaceProperties) ReadyTimeoutDuration() time.Duration {
	if s.ReadyTimeout <= 0 {
		return 30 * time.Second
	}
	return s.ReadyTimeout * time.Millisecond
}
