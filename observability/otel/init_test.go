package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken, =skip,tenant=a=b")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "a=b"}, headers)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "gotsold"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.NotNil(t, Tracer())
}
