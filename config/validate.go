package config

import (
	"fmt"
	"strings"

	"gotsol/native/merchant"
)

var (
	MinReplayWindowSeconds = 30
	knownModules           = map[string]struct{}{"merchant": {}}
)

// Validate checks every section and that the merchant section converts into
// valid engine parameters.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case "", "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.RPC.ListenAddress) == "" {
		return fmt.Errorf("rpc: ListenAddress required")
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be positive when rate limiting is enabled")
	}
	if c.RPC.ReplayWindowSeconds < MinReplayWindowSeconds {
		return fmt.Errorf("rpc: ReplayWindowSeconds below %d", MinReplayWindowSeconds)
	}
	if c.RPC.MaxBodyBytes <= 0 {
		return fmt.Errorf("rpc: MaxBodyBytes <= 0")
	}
	if c.RPC.JWT.Enable && strings.TrimSpace(c.RPC.JWT.HSSecretEnv) == "" {
		return fmt.Errorf("rpc: JWT.HSSecretEnv required when JWT is enabled")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio outside [0, 1]")
	}
	for _, module := range c.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			return fmt.Errorf("PausedModules: unknown module %q", module)
		}
	}
	if c.Merchant.MinTokenWithdrawal == 0 || c.Merchant.MinNativeWithdrawal == 0 {
		return fmt.Errorf("merchant: withdrawal minimums must be positive")
	}
	params, err := c.MerchantParams()
	if err != nil {
		return err
	}
	if err := checkMinimums(params); err != nil {
		return err
	}
	return c.Genesis.validate()
}

// checkMinimums rejects floors below which a withdrawal could never split
// into non-zero legs.
func checkMinimums(params merchant.Params) error {
	tokenMin, err := merchant.MinimumGross(params.TokenSchedule)
	if err != nil {
		return err
	}
	if params.MinTokenWithdrawal < tokenMin {
		return fmt.Errorf("merchant: MinTokenWithdrawal %d below schedule minimum %d", params.MinTokenWithdrawal, tokenMin)
	}
	nativeMin, err := merchant.MinimumGross(params.NativeSchedule)
	if err != nil {
		return err
	}
	if params.MinNativeWithdrawal < nativeMin {
		return fmt.Errorf("merchant: MinNativeWithdrawal %d below schedule minimum %d", params.MinNativeWithdrawal, nativeMin)
	}
	return nil
}
