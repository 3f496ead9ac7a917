package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"epsnet/core/ckkswrapper"
	"epsnet/nn/layers"
	"epsnet/utils"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"go.uber.org/zap"
)

// Server evaluates one Linear layer on encrypted samples. The layer weights
// are shared read-only by every connection; each connection builds its own
// ServerKit from the keys its client sends.
type Server struct {
	lin     *layers.Linear
	logger  *zap.Logger
	metrics *Metrics
}

// NewServer serves lin. logger and metrics may be nil.
func NewServer(lin *layers.Linear, logger *zap.Logger, metrics *Metrics) *Server {
	return &Server{lin: lin, logger: utils.OrNop(logger), metrics: metrics}
}

// Hello is the announcement sent to every client.
func (s *Server) Hello() HelloPayload {
	return HelloPayload{
		InDim:     s.lin.InDim(),
		OutDim:    s.lin.OutDim(),
		Levels:    s.lin.Levels(),
		Rotations: s.lin.Rotations(),
	}
}

// Serve runs the protocol on one connection until the client sends MsgDone,
// the stream ends or ctx is cancelled. If conn is an io.Closer it is closed
// on cancellation to unblock a pending read.
func (s *Server) Serve(ctx context.Context, conn io.ReadWriter) error {
	logger := s.logger.With(zap.String("conn", uuid.NewString()))
	if c, ok := conn.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}
	proto := NewProtocol(conn, conn)

	if err := proto.SendHello(s.Hello()); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	keys, err := proto.ReceiveKeys()
	if err != nil {
		return fmt.Errorf("receive keys: %w", err)
	}
	kit, err := ckkswrapper.NewServerKit(keys.Literal, keys.EvalKeys)
	if err != nil {
		proto.SendError(err)
		return fmt.Errorf("server kit: %w", err)
	}
	cl, err := layers.NewCipherLinear(s.lin, kit)
	if err != nil {
		proto.SendError(err)
		return err
	}
	logger.Info("client keys accepted", zap.Int("log_n", keys.Literal.LogN), zap.Int("eval_key_bytes", len(keys.EvalKeys)))

	served := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := proto.ReceiveForward()
		if errors.Is(err, io.EOF) {
			logger.Info("client done", zap.Int("samples", served))
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive forward: %w", err)
		}

		out, err := s.forward(cl, payload)
		if err != nil {
			logger.Warn("forward failed", zap.String("request_id", payload.RequestID), zap.Error(err))
			if err := proto.SendError(err); err != nil {
				return fmt.Errorf("send error: %w", err)
			}
			continue
		}
		if err := proto.SendForwardOutput(*out); err != nil {
			return fmt.Errorf("send forward output: %w", err)
		}
		served++
		logger.Debug("sample served", zap.String("request_id", payload.RequestID), zap.Int("batch", payload.BatchID))
	}
}

func (s *Server) forward(cl *layers.CipherLinear, in *ForwardPayload) (*ForwardPayload, error) {
	start := time.Now()
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(in.Ciphertext); err != nil {
		s.metrics.request("error", 0)
		return nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}

	ev := cl.Evaluator()
	ev.ResetCounters()
	out, err := cl.Forward(ct)
	s.metrics.observeOps(ev.Counts())
	if err != nil {
		s.metrics.request("error", 0)
		return nil, err
	}
	ctBytes, err := out.MarshalBinary()
	if err != nil {
		s.metrics.request("error", 0)
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}
	s.metrics.request("ok", time.Since(start).Seconds())
	ev.LogCounters(s.logger, "forward")

	scale := out.Scale.Float64()
	return &ForwardPayload{
		RequestID:  in.RequestID,
		BatchID:    in.BatchID,
		Ciphertext: ctBytes,
		Level:      out.Level(),
		ScaleFloat: scale,
	}, nil
}

// ListenAndServe accepts connections on ln and serves each on its own
// goroutine until ctx is cancelled. It waits for open connections to finish
// before returning.
func (s *Server) ListenAndServe(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			s.logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))
			if err := s.Serve(ctx, conn); err != nil && ctx.Err() == nil {
				s.logger.Error("connection failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			}
		}()
	}
}
