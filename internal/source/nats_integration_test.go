//go:build integration

package source

import (
	"Go2NetIngest/internal/config"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupNATS(t *testing.T) string {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestPublisherReplayIntoNATSSource(t *testing.T) {
	cfg := config.NATSConfig{
		URL:         setupNATS(t),
		Subject:     "goflow2.test",
		IdleTimeout: "500ms",
		BufferSize:  16,
	}

	sub, err := NewNATSSource(cfg, nil)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := NewPublisher(cfg, nil)
	require.NoError(t, err)

	input := "{\"n\":1}\n\n{\"n\":2}\n" + `{"pad":"` + strings.Repeat("x", 64) + "\"}\n{\"n\":3}\n"
	lines := NewReaderSource(strings.NewReader(input), 16)
	n, err := pub.Replay(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, pub.Close())

	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, drain(t, sub.Next))
}
