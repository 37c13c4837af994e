package main

import (
	"os"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger/console"
)

func main() {
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Prefix: "ladder",
	})
	logger.Init(consoleLogger)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
