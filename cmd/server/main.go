package main

import (
	"github.com/OFFIS-RIT/laddering/backend/internal/server"
	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	server.Init()
}
