package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/royalcat/cjstream/internal/telemetry"
	"github.com/royalcat/cjstream/server"
	"github.com/royalcat/cjstream/splitter"
)

func serveAction(ctx *cli.Context) error {
	if endpoint := ctx.String("telemetry.endpoint"); endpoint != "" {
		client, err := telemetry.Setup(ctx.Context, "cjstream", endpoint)
		if err != nil {
			return err
		}
		if client != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Flush(shutdownCtx); err != nil {
					slog.Error("failed to flush telemetry", "error", err)
				}
				client.Shutdown(shutdownCtx)
			}()
		}
	}

	slog.Info("Loading city model", "input", ctx.String("input"))
	doc, err := readDocument(ctx.String("input"))
	if err != nil {
		return err
	}

	s, err := splitter.New(doc, splitter.WithOrder(splitter.OrderAlphabetical))
	if err != nil {
		return err
	}

	idx, err := server.BuildIndex(ctx.Context, s, threadCount(ctx))
	if err != nil {
		return err
	}
	slog.Info("Index built", "features", idx.Len())

	return server.Run(ctx.Context, ctx.String("listen"), idx)
}
