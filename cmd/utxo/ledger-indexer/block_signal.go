//go:build !zmq

package main

import (
	"context"

	"go.uber.org/zap"
)

// startBlockSignal without the zmq build tag only polls.
func startBlockSignal(_ context.Context, addr string, logger *zap.Logger) (<-chan struct{}, error) {
	if addr != "" {
		logger.Warn("zmq support not compiled in, falling back to polling", zap.String("addr", addr))
	}
	return nil, nil
}
