package clog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

type connectConfig struct {
	Filter func(spec connect.Spec) bool
}

type ConnectOption interface {
	apply(*connectConfig)
}

type connectOptionFunc func(*connectConfig)

func (o connectOptionFunc) apply(c *connectConfig) {
	o(c)
}

func WithConnectFilter(filter func(connect.Spec) bool) ConnectOption {
	return connectOptionFunc(func(cfg *connectConfig) {
		cfg.Filter = filter
	})
}

// NewSlogConnectUnaryInterceptor logs one line per unary RPC with its
// procedure, resulting code and duration.
func NewSlogConnectUnaryInterceptor(opts ...ConnectOption) connect.UnaryInterceptorFunc {
	cfg := connectConfig{}
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			startTime := time.Now()
			newCtx := ContextWithSlog(ctx)
			AddAttributes(newCtx, map[string]any{
				"method":    req.HTTPMethod(),
				"procedure": req.Spec().Procedure,
			})

			resp, err := next(newCtx, req)
			if cfg.Filter != nil && !cfg.Filter(req.Spec()) {
				return resp, err
			}

			code := "ok"
			level := LevelInfo
			msg := "Finished"
			if err != nil {
				var cerr *connect.Error
				if !errors.As(err, &cerr) {
					cerr = connect.NewError(connect.CodeUnknown, err)
				}
				code = cerr.Code().String()
				level = ConnectCodeToLevel(cerr.Code())
				msg = cerr.Message()
			}
			AddAttributes(newCtx, map[string]any{
				"code":     code,
				"duration": time.Since(startTime),
			})
			slog.Log(newCtx, level.SlogLevel(), msg)
			return resp, err
		}
	}
}
