package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/config"
)

func TestRunProducesRequestedBlocks(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 42
	require.NoError(t, run(context.Background(), cfg, 5, zap.NewNop()))
}
