package configuration

import (
	"time"
)

type Properties struct {
	App        AppConfigurationProperties        `yaml:"app"`
	Simulation SimulationConfigurationProperties `yaml:"simulation"`
	Transport  TransportConfigurationProperties  `yaml:"transport"`
	AP         APConfigurationProperties         `yaml:"ap"`
	CP         CPConfigurationProperties         `yaml:"cp"`
	CA         CAConfigurationProperties         `yaml:"ca"`
}

type AppConfigurationProperties struct {
	Profile     string `yaml:"profile"`
	LogLevel    string `yaml:"log-level"`
	MetricsAddr string `yaml:"metrics-addr"`
}

// Window is a closed range of milliseconds a random pause is drawn from.
type Window struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func (w Window) MinDuration() time.Duration {
	return time.Duration(w.Min) * time.Millisecond
}

func (w Window) MaxDuration() time.Duration {
	return time.Duration(w.Max) * time.Millisecond
}

type SimulationConfigurationProperties struct {
	Nodes        int      `yaml:"nodes"`
	Iterations   int      `yaml:"iterations"`
	TimeLimit    int      `yaml:"time-limit"`
	InitTime     int      `yaml:"init-time"`
	SettleTime   int      `yaml:"settle-time"`
	StartStagger int      `yaml:"start-stagger"`
	StepWait     Window   `yaml:"step-wait"`
	Seed         int64    `yaml:"seed"`
	Variants     []string `yaml:"variants"`
	JournalDir   string   `yaml:"journal-dir"`
}

type TransportConfigurationProperties struct {
	InboxSize int `yaml:"inbox-size"`
}

type APPartitionProperties struct {
	TriggerRate float64 `yaml:"trigger-rate"`
	PeerRate    float64 `yaml:"peer-rate"`
	Quiet       Window  `yaml:"quiet"`
	Hold        Window  `yaml:"hold"`
	MaxCycles   int     `yaml:"max-cycles"`
}

type APConfigurationProperties struct {
	DropRate          float64               `yaml:"drop-rate"`
	DelayRate         float64               `yaml:"delay-rate"`
	CorruptRate       float64               `yaml:"corrupt-rate"`
	MinDelay          int                   `yaml:"min-delay"`
	MaxDelay          int                   `yaml:"max-delay"`
	SweepInterval     int                   `yaml:"sweep-interval"`
	StaleReadRate     float64               `yaml:"stale-read-rate"`
	LostReadRate      float64               `yaml:"lost-read-rate"`
	WriteStallRate    float64               `yaml:"write-stall-rate"`
	WriteStall        Window                `yaml:"write-stall"`
	ReceiveJitterRate float64               `yaml:"receive-jitter-rate"`
	ReceiveJitter     Window                `yaml:"receive-jitter"`
	Partition         APPartitionProperties `yaml:"partition"`
}

type CPConfigurationProperties struct {
	QuorumFactor      float64 `yaml:"quorum-factor"`
	Timeout           int     `yaml:"timeout"`
	StallRate         float64 `yaml:"stall-rate"`
	WriteStall        Window  `yaml:"write-stall"`
	ReadStall         Window  `yaml:"read-stall"`
	ReceiveJitterRate float64 `yaml:"receive-jitter-rate"`
	ReceiveJitter     Window  `yaml:"receive-jitter"`
	RollbackRate      float64 `yaml:"rollback-rate"`
	ReadFailureRate   float64 `yaml:"read-failure-rate"`
}

type CAPartitionProperties struct {
	StartRate   float64 `yaml:"start-rate"`
	TriggerRate float64 `yaml:"trigger-rate"`
	ResolveRate float64 `yaml:"resolve-rate"`
	Quiet       Window  `yaml:"quiet"`
	Hold        Window  `yaml:"hold"`
	MaxCycles   int     `yaml:"max-cycles"`
}

type CAConfigurationProperties struct {
	Timeout                  int                   `yaml:"timeout"`
	MaxRetries               int                   `yaml:"max-retries"`
	PartitionThreshold       float64               `yaml:"partition-threshold"`
	StallRate                float64               `yaml:"stall-rate"`
	Stall                    Window                `yaml:"stall"`
	PartitionedLossRate      float64               `yaml:"partitioned-loss-rate"`
	MessageLossRate          float64               `yaml:"message-loss-rate"`
	NodeFailureRate          float64               `yaml:"node-failure-rate"`
	ReceiveDelayRate         float64               `yaml:"receive-delay-rate"`
	ReadDelayRate            float64               `yaml:"read-delay-rate"`
	ProcessingDelay          int                   `yaml:"processing-delay"`
	SyncRate                 float64               `yaml:"sync-rate"`
	SyncFailurePartitionRate float64               `yaml:"sync-failure-partition-rate"`
	Partition                CAPartitionProperties `yaml:"partition"`
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (c *SimulationConfigurationProperties) TimeLimitDuration() time.Duration {
	return millis(c.TimeLimit)
}

func (c *SimulationConfigurationProperties) InitDuration() time.Duration {
	return millis(c.InitTime)
}

func (c *SimulationConfigurationProperties) SettleDuration() time.Duration {
	return millis(c.SettleTime)
}

func (c *SimulationConfigurationProperties) StaggerDuration() time.Duration {
	return millis(c.StartStagger)
}

func (c *APConfigurationProperties) MinDelayDuration() time.Duration {
	return millis(c.MinDelay)
}

func (c *APConfigurationProperties) MaxDelayDuration() time.Duration {
	return millis(c.MaxDelay)
}

func (c *APConfigurationProperties) SweepDuration() time.Duration {
	return millis(c.SweepInterval)
}

func (c *CPConfigurationProperties) TimeoutDuration() time.Duration {
	return millis(c.Timeout)
}

func (c *CAConfigurationProperties) TimeoutDuration() time.Duration {
	return millis(c.Timeout)
}

// SyncTimeoutDuration bounds a read-time synchronization round.
func (c *CAConfigurationProperties) SyncTimeoutDuration() time.Duration {
	return millis(c.Timeout) / 2
}

func (c *CAConfigurationProperties) ProcessingDelayDuration() time.Duration {
	return millis(c.ProcessingDelay)
}
