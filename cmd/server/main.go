// Command server runs the emoji feed API and its maintenance tasks.
package main

import (
	"log/slog"
	"os"

	"emojifeed/internal/middleware"
)

//go:generate swag init -g cmd/server/main.go -d ../.. -o ../../docs

// @title Emoji Feed API
// @version 0.1.0
// @description Emoji-only posts, likes and profile lookups

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := RootApp().Run(os.Args); err != nil {
		middleware.Logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
