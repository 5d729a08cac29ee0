package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"

	"gotsol/crypto"
	"gotsol/native/merchant"
	"gotsol/observability/logging"
	telemetry "gotsol/observability/otel"
)

const (
	defaultRPCAddress      = ":8899"
	defaultDataDir         = "./gotsol-data"
	defaultKeypairFilename = "admin.json"
	defaultEnvironment     = "local"
)

type Config struct {
	DataDir          string   `toml:"DataDir"`
	Environment      string   `toml:"Environment"`
	AdminKeypairPath string   `toml:"AdminKeypairPath"`
	PausedModules    []string `toml:"PausedModules"`

	Storage   Storage   `toml:"storage"`
	RPC       RPC       `toml:"rpc"`
	Merchant  Merchant  `toml:"merchant"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
	Genesis   Genesis   `toml:"genesis"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration whose admin and house keys are a
// freshly generated keypair stored next to it.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration populated with every default except keys.
func Default() *Config {
	params := merchant.DefaultParams()
	return &Config{
		DataDir:     defaultDataDir,
		Environment: defaultEnvironment,
		Storage:     Storage{Backend: "leveldb", EventLog: "events.db"},
		RPC: RPC{
			ListenAddress:       defaultRPCAddress,
			ReadHeaderTimeout:   5,
			WriteTimeout:        15,
			MaxBodyBytes:        1 << 20,
			RateLimitPerSecond:  20,
			RateLimitBurst:      40,
			ReplayWindowSeconds: 300,
		},
		Merchant: Merchant{
			ProgramID:               params.ProgramID.String(),
			ScheduleDivisor:         params.TokenSchedule.Divisor,
			TokenSchedule:           sharesFromSchedule(params.TokenSchedule),
			NativeSchedule:          sharesFromSchedule(params.NativeSchedule),
			MinTokenWithdrawal:      params.MinTokenWithdrawal,
			MinNativeWithdrawal:     params.MinNativeWithdrawal,
			PermanentRefundDenylist: params.PermanentRefundDenylist,
		},
		Logging:   Logging{Format: "json", Level: "info"},
		Telemetry: Telemetry{SampleRatio: 1},
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = defaultEnvironment
	}
	if c.Merchant.ScheduleDivisor == 0 {
		c.Merchant.ScheduleDivisor = merchant.BasisPointsDivisor
	}
	if len(c.Merchant.TokenSchedule) == 0 {
		c.Merchant.TokenSchedule = sharesFromSchedule(merchant.DefaultSchedule())
	}
	if len(c.Merchant.NativeSchedule) == 0 {
		c.Merchant.NativeSchedule = sharesFromSchedule(merchant.DefaultSchedule())
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keypairPath := defaultKeypairPath(path)
	if err := crypto.SaveKeypair(keypairPath, key); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.AdminKeypairPath = keypairPath
	cfg.Merchant.Admins = []string{key.PublicKey().String()}
	cfg.Merchant.House = key.PublicKey().String()
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeypairPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, defaultKeypairFilename)
}

// Path resolves name relative to the data directory unless it is absolute.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// MerchantParams converts the merchant section into engine parameters.
func (c *Config) MerchantParams() (merchant.Params, error) {
	m := c.Merchant
	params := merchant.DefaultParams()

	var err error
	if params.ProgramID, err = solana.PublicKeyFromBase58(m.ProgramID); err != nil {
		return merchant.Params{}, fmt.Errorf("merchant.ProgramID: %w", err)
	}
	params.Admins = make([]solana.PublicKey, 0, len(m.Admins))
	for i, raw := range m.Admins {
		key, err := crypto.ParsePublicKey(raw)
		if err != nil {
			return merchant.Params{}, fmt.Errorf("merchant.Admins[%d]: %w", i, err)
		}
		params.Admins = append(params.Admins, key)
	}
	if params.House, err = crypto.ParsePublicKey(m.House); err != nil {
		return merchant.Params{}, fmt.Errorf("merchant.House: %w", err)
	}
	if params.ComplianceRecipient, err = optionalKey(m.ComplianceRecipient); err != nil {
		return merchant.Params{}, fmt.Errorf("merchant.ComplianceRecipient: %w", err)
	}
	if params.FeePayer, err = optionalKey(m.FeePayer); err != nil {
		return merchant.Params{}, fmt.Errorf("merchant.FeePayer: %w", err)
	}
	params.TokenSchedule = scheduleFromShares(m.ScheduleDivisor, m.TokenSchedule)
	params.NativeSchedule = scheduleFromShares(m.ScheduleDivisor, m.NativeSchedule)
	params.MinTokenWithdrawal = m.MinTokenWithdrawal
	params.MinNativeWithdrawal = m.MinNativeWithdrawal
	params.MaxRefundAmount = m.MaxRefundAmount
	params.DefaultFeeEligible = m.DefaultFeeEligible
	params.AllowCloseWithBalance = m.AllowCloseWithBalance
	params.PermanentRefundDenylist = m.PermanentRefundDenylist
	params.Mints = make([]merchant.MintParams, 0, len(m.Mints))
	for i, mint := range m.Mints {
		addr, err := crypto.ParsePublicKey(mint.Address)
		if err != nil {
			return merchant.Params{}, fmt.Errorf("merchant.Mints[%d]: %w", i, err)
		}
		params.Mints = append(params.Mints, merchant.MintParams{Address: addr, Symbol: mint.Symbol, Decimals: mint.Decimals})
	}
	if err := params.Validate(); err != nil {
		return merchant.Params{}, err
	}
	return params, nil
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Options {
	file := c.Logging.File
	if file != "" {
		file = c.Path(file)
	}
	return logging.Options{
		Format:     c.Logging.Format,
		Level:      c.Logging.Level,
		File:       file,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// TelemetryConfig converts the telemetry section for service.
func (c *Config) TelemetryConfig(service string) telemetry.Config {
	return telemetry.Config{
		ServiceName: service,
		Environment: c.Environment,
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		Headers:     c.Telemetry.Headers,
		Metrics:     c.Telemetry.Metrics,
		Traces:      c.Telemetry.Traces,
		SampleRatio: c.Telemetry.SampleRatio,
	}
}

// ReplayWindow returns the window during which a request signature may not be
// reused.
func (c *Config) ReplayWindow() time.Duration {
	return time.Duration(c.RPC.ReplayWindowSeconds) * time.Second
}

func optionalKey(raw string) (solana.PublicKey, error) {
	if strings.TrimSpace(raw) == "" {
		return solana.PublicKey{}, nil
	}
	return crypto.ParsePublicKey(raw)
}

func sharesFromSchedule(schedule merchant.Schedule) []Share {
	out := make([]Share, len(schedule.Shares))
	for i, share := range schedule.Shares {
		out[i] = Share{Role: string(share.Role), BasisPoints: share.BasisPoints}
	}
	return out
}

func scheduleFromShares(divisor uint64, shares []Share) merchant.Schedule {
	schedule := merchant.Schedule{Divisor: divisor, Shares: make([]merchant.Share, len(shares))}
	for i, share := range shares {
		schedule.Shares[i] = merchant.Share{
			Role:        merchant.Role(strings.ToLower(strings.TrimSpace(share.Role))),
			BasisPoints: share.BasisPoints,
		}
	}
	return schedule
}
