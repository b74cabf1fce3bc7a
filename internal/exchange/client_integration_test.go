//go:build integration
// +build integration

package exchange

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backpack-volume/internal/config"
)

func TestClientIntegration_PublicEndpoints(t *testing.T) {
	configPath := os.Getenv("VOLUME_CONFIG")
	if configPath == "" {
		configPath = "../../configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Skipf("加载配置失败，跳过测试: %v", err)
	}

	client, err := NewClient(cfg.Exchange, nil, "", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	markets, err := client.Markets(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, markets)

	trades, err := client.Trades(ctx, cfg.Trading.Symbol, 20)
	require.NoError(t, err)
	for _, tr := range trades {
		assert.Greater(t, tr.Price, 0.0)
	}
}

func TestTradeStreamIntegration_ReceivesTrades(t *testing.T) {
	if os.Getenv("VOLUME_WS_TEST") == "" {
		t.Skip("未设置 VOLUME_WS_TEST，跳过成交流测试")
	}

	stream := NewTradeStream("wss://ws.backpack.exchange", "SOL_USDC", 50, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	go func() { _ = stream.Run(ctx) }()

	require.Eventually(t, func() bool { return len(stream.Recent()) > 0 }, 25*time.Second, 500*time.Millisecond)
}
