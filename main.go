package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mykhaliev/llm-judge/engine"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/version"
)

const (
	AppName = "llm-judge"
)

func main() {
	os.Exit(run())
}

func run() int {
	suitePath := flag.String("f", "", "Path to the suite file (YAML)")
	outputPath := flag.String("o", "", "Path to the JSON results file")
	logPath := flag.String("l", "", "Path to the log file (if not set, logs to stdout)")
	envPath := flag.String("env", "", "Path to a .env file loaded before the suite")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	showVersion := flag.Bool("v", false, "Show version and exit")

	flag.Parse()

	fmt.Printf("Version: %s\nCommit: %s\nBuildDate: %s\n",
		version.Version, version.Commit, version.BuildDate)
	if *showVersion {
		return 0
	}

	logWriter, logFile, err := logger.SetupLogWriter(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to setup logging: %v\n", err)
		return 1
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetupLogger(logWriter, *verbose)

	if *suitePath == "" {
		fmt.Fprintf(os.Stderr, "Error: -f <suite-file> is required\n\n")
		flag.Usage()
		return 1
	}

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			logger.Logger.Error("Failed to load env file", "path", *envPath, "error", err)
			return 1
		}
	}

	logger.Logger.Info("Starting application",
		"app", AppName,
		"suite", *suitePath,
		"output", *outputPath,
		"logfile", *logPath,
		"verbose", *verbose)

	suite, err := engine.LoadSuite(*suitePath)
	if err != nil {
		logger.Logger.Error("Failed to load suite", "error", err)
		return 1
	}
	if suite.Settings.Verbose && !*verbose {
		logger.SetupLogger(logWriter, true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := engine.Run(ctx, suite, engine.Config{
		SuitePath:  *suitePath,
		OutputPath: *outputPath,
	})
	if err != nil {
		logger.Logger.Error("Run failed", "error", err)
		return 1
	}

	engine.PrintSummary(os.Stdout, report)
	if !engine.CriteriaMet(report) {
		return 1
	}
	return 0
}
