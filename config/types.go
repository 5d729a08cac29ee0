package config

// Share is one role of a split schedule in basis points.
type Share struct {
	Role        string `toml:"Role"`
	BasisPoints uint64 `toml:"BasisPoints"`
}

// Mint lists a token the merchant program accepts.
type Mint struct {
	Address  string `toml:"Address"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// Merchant captures the program parameters of the merchant engine.
type Merchant struct {
	ProgramID               string   `toml:"ProgramID"`
	Admins                  []string `toml:"Admins"`
	House                   string   `toml:"House"`
	ComplianceRecipient     string   `toml:"ComplianceRecipient,omitempty"`
	FeePayer                string   `toml:"FeePayer,omitempty"`
	ScheduleDivisor         uint64   `toml:"ScheduleDivisor"`
	TokenSchedule           []Share  `toml:"TokenSchedule"`
	NativeSchedule          []Share  `toml:"NativeSchedule"`
	MinTokenWithdrawal      uint64   `toml:"MinTokenWithdrawal"`
	MinNativeWithdrawal     uint64   `toml:"MinNativeWithdrawal"`
	MaxRefundAmount         uint64   `toml:"MaxRefundAmount"`
	DefaultFeeEligible      bool     `toml:"DefaultFeeEligible"`
	AllowCloseWithBalance   bool     `toml:"AllowCloseWithBalance"`
	PermanentRefundDenylist bool     `toml:"PermanentRefundDenylist"`
	Mints                   []Mint   `toml:"Mints"`
}

// Storage selects the ledger backend and the event log location.
type Storage struct {
	// Backend is "leveldb", "bolt" or "memory".
	Backend string `toml:"Backend"`
	// EventLog is the SQLite file for committed events. Empty disables it.
	EventLog string `toml:"EventLog"`
}

// RPC controls the JSON-RPC listener.
type RPC struct {
	ListenAddress       string  `toml:"ListenAddress"`
	ReadHeaderTimeout   int     `toml:"ReadHeaderTimeout"`
	WriteTimeout        int     `toml:"WriteTimeout"`
	MaxBodyBytes        int64   `toml:"MaxBodyBytes"`
	RateLimitPerSecond  float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst      int     `toml:"RateLimitBurst"`
	ReplayWindowSeconds int     `toml:"ReplayWindowSeconds"`
	JWT                 JWT     `toml:"JWT"`
}

// JWT gates operator-only read methods behind an HS256 bearer token. The
// secret is read from the environment variable named by HSSecretEnv.
type JWT struct {
	Enable         bool   `toml:"Enable"`
	HSSecretEnv    string `toml:"HSSecretEnv,omitempty"`
	Issuer         string `toml:"Issuer,omitempty"`
	Audience       string `toml:"Audience,omitempty"`
	MaxSkewSeconds int    `toml:"MaxSkewSeconds,omitempty"`
}

// Logging mirrors the options of the structured logger.
type Logging struct {
	Format     string `toml:"Format"`
	Level      string `toml:"Level"`
	File       string `toml:"File,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB,omitempty"`
	MaxBackups int    `toml:"MaxBackups,omitempty"`
	MaxAgeDays int    `toml:"MaxAgeDays,omitempty"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string            `toml:"Endpoint"`
	Insecure    bool              `toml:"Insecure"`
	Traces      bool              `toml:"Traces"`
	Metrics     bool              `toml:"Metrics"`
	SampleRatio float64           `toml:"SampleRatio"`
	Headers     map[string]string `toml:"Headers,omitempty"`
}
