// Package commands holds the collabctl subcommands.
package commands

import (
	"io"

	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/config"
)

// Flags carries the global flags and what the root Before hook builds from
// them. Commands hold a pointer and read it when they run.
type Flags struct {
	ConfigPath string
	LogLevel   string

	Config config.Config
	Logger *zap.Logger
	Out    io.Writer
}
