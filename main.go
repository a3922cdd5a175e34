package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("slot-bot failed", slog.Any("error", err))
		os.Exit(1)
	}
}
