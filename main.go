package main

import (
	cmdcalculate "finops-usage/command/calculate"
	cmdimport "finops-usage/command/import"
	cmdreport "finops-usage/command/report"
	cmdweb "finops-usage/command/web"
	"finops-usage/connectors/config"
	dc "finops-usage/domain/config"
	"finops-usage/logger"
	"fmt"
	"log/slog"
	"os"
)

// Cloud usage cost analyzer.
// Usage:
//   finops-usage import [-out data/usage.csv] [-prefix exports/]
//   finops-usage calculate [-out ./data] [-days 30]
//   finops-usage report [-top 5] [-width 60] [-height 10]
//   finops-usage web [-addr :8080] [-ui ./ui/dist] [-watch]
// Notes:
// - Configuration is read from finops.yaml (or CONFIG_PATH), then .env, then the environment.
// - Exports come from a local CSV (USAGE_FILE) or Azure Blob Storage
//   (AZURE_STORAGE_ACCOUNT_NAME, AZURE_STORAGE_CONTAINER_NAME and AZURE_TENANT_ID/CLIENT_ID/CLIENT_SECRET).

var commands = map[string]func(*dc.Config, []string) error{
	"import":    cmdimport.Run,
	"calculate": cmdcalculate.Run,
	"report":    cmdreport.Run,
	"web":       cmdweb.Run,
}

func main() {
	args := os.Args
	if len(args) < 2 || commands[args[1]] == nil {
		fmt.Fprintln(os.Stderr, "usage: finops-usage import | calculate | report | web [flags]\nENV: set CONFIG_PATH to point to a YAML config file (default ./finops.yaml)")
		os.Exit(2)
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	sub := args[1]
	rest := append([]string{}, args[2:]...)
	if err := commands[sub](cfg, rest); err != nil {
		slog.Error("command.failed", "command", sub, "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
