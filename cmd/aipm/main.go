package main

import (
	"io"
	"os"

	app "github.com/valter-silva-au/aipm/internal"
	"github.com/valter-silva-au/aipm/internal/cli"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.SetInitializer(func(dataDir string, cfg *models.GlobalConfig, log *zap.Logger) (io.Closer, error) {
		a, err := app.NewApp(dataDir, cfg, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	})

	// Execute has already printed the error as JSON.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
