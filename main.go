package main

import (
	"context"

	"github.com/locvowork/sheetstream/internal/bootstrap"
	"github.com/locvowork/sheetstream/internal/logger"
)

func main() {
	ctx := context.Background()

	app := bootstrap.NewApp()
	if err := app.InitializeServer(ctx); err != nil {
		logger.ErrorErr(ctx, err, "Failed to initialize application")
		app.Close()
		panic(err)
	}

	if err := app.Run(); err != nil {
		logger.ErrorErr(ctx, err, "Server stopped")
	}
}
