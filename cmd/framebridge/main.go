// Package main is the entrypoint for the framebridge binary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aribermeki/framebridge/internal/config"
	"github.com/aribermeki/framebridge/internal/server"
	"github.com/aribermeki/framebridge/pkg/command"
	"github.com/aribermeki/framebridge/pkg/eventloop"
	"github.com/aribermeki/framebridge/pkg/peer"
)

const usage = `Usage: framebridge [command]
       framebridge serve          Start the bridge (host adapter on stdin/stdout, HTTP health).
       framebridge stub-runtime   Run a stand-in runtime peer on RUNTIME_HOST:RUSTADDR.

Commands:
  serve         (default) Start the bridge with the demo command set.
  stub-runtime  Serve framed TCP responses for local development and tests.

Environment: RUSTADDR (default 5555), RUNTIME_HOST (default 127.0.0.1),
BRIDGE_CALL_TIMEOUT, BRIDGE_MAX_PENDING, HTTP_PORT, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "", "serve":
		if err := server.Run(registerCommands); err != nil {
			log.Fatalf("framebridge serve: %v", err)
		}
	case "stub-runtime":
		if err := runStubRuntime(); err != nil {
			log.Fatalf("framebridge stub-runtime: %v", err)
		}
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		log.Fatalf("framebridge: unknown command %q\n\n%s", cmd, usage)
	}
}

// registerCommands wires the demo command set: plain handlers plus one
// that calls back into the runtime peer.
func registerCommands(reg *command.Registry, loop *eventloop.EventLoop) error {
	if err := reg.Register("add", command.Sync(func(args []any) (any, error) {
		x, y, err := twoNumbers(args)
		if err != nil {
			return nil, err
		}
		return x + y, nil
	})); err != nil {
		return err
	}

	if err := reg.Register("mul", command.Async(func(ctx context.Context, args []any) (any, error) {
		x, y, err := twoNumbers(args)
		if err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		return x * y, nil
	})); err != nil {
		return err
	}

	if err := reg.Register("echo", command.Sync(func(args []any) (any, error) {
		return args, nil
	})); err != nil {
		return err
	}

	// set_title forwards to the runtime peer and returns its answer.
	return reg.Register("set_title", command.Async(func(ctx context.Context, args []any) (any, error) {
		return eventloop.Call[string](ctx, loop, "set_title", args)
	}))
}

func twoNumbers(args []any) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("want 2 arguments, got %d", len(args))
	}
	x, ok := args[0].(float64)
	if !ok {
		return 0, 0, fmt.Errorf("argument 1 is not a number")
	}
	y, ok := args[1].(float64)
	if !ok {
		return 0, 0, fmt.Errorf("argument 2 is not a number")
	}
	return x, y, nil
}

// runStubRuntime serves a minimal method set so the bridge can be
// exercised without the real runtime.
func runStubRuntime() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	srv, err := peer.Listen(cfg.RuntimeAddr(), func(_ context.Context, method string, args []any) (any, error) {
		switch method {
		case "ping":
			return "pong", nil
		case "set_title":
			if len(args) != 1 {
				return nil, peer.Errorf(2, "set_title wants 1 argument, got %d", len(args))
			}
			return fmt.Sprintf("title set to %v", args[0]), nil
		default:
			return map[string]any{"method": method, "args": args}, nil
		}
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Serve(context.Background())
}
