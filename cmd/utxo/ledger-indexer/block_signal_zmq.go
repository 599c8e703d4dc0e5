//go:build zmq

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

const recvTimeout = time.Second

// startBlockSignal subscribes to the node's hashblock feed and returns a
// channel that fires once per burst of new blocks. An empty addr disables it.
func startBlockSignal(ctx context.Context, addr string, logger *zap.Logger) (<-chan struct{}, error) {
	if addr == "" {
		return nil, nil
	}

	sub, err := newSubscriber(addr, "hashblock")
	if err != nil {
		return nil, fmt.Errorf("connect zmq: %w", err)
	}

	notify := make(chan struct{}, 1)

	go func() {
		defer sub.Close()
		for ctx.Err() == nil {
			parts, err := sub.RecvMessageBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				logger.Warn("zmq recv failed", zap.Error(err))
				time.Sleep(recvTimeout)
				continue
			}
			if len(parts) < 2 {
				logger.Warn("skip malformed zmq message", zap.Int("parts", len(parts)))
				continue
			}
			logger.Debug("new block announced", zap.String("hash", hex.EncodeToString(parts[1])))

			select {
			case notify <- struct{}{}:
			default:
			}
		}
	}()

	return notify, nil
}

func newSubscriber(addr string, topics ...string) (*zmq4.Socket, error) {
	sub, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, err
	}

	// bounded receive so the reader notices cancellation
	if err := sub.SetRcvtimeo(recvTimeout); err != nil {
		sub.Close()
		return nil, err
	}

	for _, topic := range topics {
		if err := sub.SetSubscribe(topic); err != nil {
			sub.Close()
			return nil, err
		}
	}

	if err := sub.Connect(addr); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}
