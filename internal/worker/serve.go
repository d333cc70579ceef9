package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// Serve announces readiness on out, then reads bundles from in until EOF or
// ctx is done, handling each on its own goroutine. It waits for in-flight
// jobs before returning.
func Serve(ctx context.Context, d *Dispatcher, in io.Reader, out, errOut io.Writer) error {
	return ServeEncoders(ctx, d, in, protocol.NewEncoder(out), protocol.NewEncoder(errOut))
}

// ServeEncoders is Serve with caller-owned encoders, so a log handler can
// share the stdout encoder with replies.
func ServeEncoders(ctx context.Context, d *Dispatcher, in io.Reader, stdout, stderr *protocol.Encoder) error {
	if err := stdout.Encode(protocol.Ready{Type: protocol.TypeReady}); err != nil {
		return fmt.Errorf("announce ready: %w", err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	reader := protocol.NewLineReader(in)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, protocol.ErrLineTooLong) {
			_ = stdout.Encode(protocol.LogLine{Log: "Ignoring oversize bundle"})
			continue
		}
		if err != nil {
			return err
		}

		bundle, err := protocol.ParseBundle(line)
		if err != nil {
			_ = stdout.Encode(protocol.LogLine{Log: fmt.Sprintf("Ignoring malformed bundle: %v", err)})
			continue
		}

		wg.Add(1)
		go func(b *protocol.Bundle) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					_ = stderr.Encode(protocol.ErrorLine{
						Key:      b.Key,
						Error:    fmt.Sprintf("Unknown error: %v", r),
						Stack:    string(debug.Stack()),
						Uncaught: true,
					})
				}
			}()

			reply := d.Handle(ctx, b)
			if reply.Err != nil {
				_ = stderr.Encode(reply.Err)
			}
			if reply.Out != nil {
				_ = stdout.Encode(reply.Out)
			}
		}(bundle)
	}
}

type logWriter struct {
	enc *protocol.Encoder
}

func (w logWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if err := w.enc.Encode(protocol.LogLine{Log: msg}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewLogHandler returns a slog.Handler that prints each record as a {log}
// line on enc. The host relays these lines to its own log.
func NewLogHandler(enc *protocol.Encoder, level slog.Level) slog.Handler {
	return slog.NewTextHandler(logWriter{enc: enc}, &slog.HandlerOptions{Level: level})
}
