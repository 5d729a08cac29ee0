package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gotsol/config"
)

func TestStatePathFollowsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = "/srv/gotsol"
	require.Equal(t, filepath.Join("/srv/gotsol", "state"), statePath(cfg))
	cfg.Storage.Backend = "bolt"
	require.Equal(t, filepath.Join("/srv/gotsol", "state.bolt"), statePath(cfg))
}

func TestRPCConfigFromFile(t *testing.T) {
	cfg := config.Default()
	out := rpcConfig(cfg)
	require.Equal(t, cfg.RPC.MaxBodyBytes, out.MaxBodyBytes)
	require.Equal(t, 300*time.Second, out.ReplayWindow)
	require.Equal(t, 5*time.Second, out.ReadHeaderTimeout)
	require.False(t, out.Operator.Enable)

	t.Setenv("GOTSOL_TEST_JWT", " s3cret ")
	cfg.RPC.JWT = config.JWT{Enable: true, HSSecretEnv: "GOTSOL_TEST_JWT", Issuer: "ops", MaxSkewSeconds: 30}
	out = rpcConfig(cfg)
	require.True(t, out.Operator.Enable)
	require.Equal(t, []byte("s3cret"), out.Operator.Secret)
	require.Equal(t, "ops", out.Operator.Issuer)
	require.Equal(t, 30*time.Second, out.Operator.MaxSkew)
}
