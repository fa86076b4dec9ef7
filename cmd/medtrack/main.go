package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gmsas95/medtrack/internal/cli"
	"github.com/gmsas95/medtrack/internal/config"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Usage = cli.PrintHelp
	flag.Parse()

	if err := config.LoadEnvFiles(*dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli.Version = version
	opts := cli.Options{ConfigPath: *configPath, DataDir: *dataDir}

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve", "server":
		cli.HandleServeCommand(opts)
	case "sweep":
		cli.HandleSweepCommand(opts)
	case "report":
		cli.HandleReportCommand(args, opts)
	case "token":
		cli.HandleTokenCommand(args, opts)
	case "config":
		cli.HandleConfigCommand(args, opts)
	case "version", "--version", "-v":
		fmt.Printf("medtrack version %s\n", version)
	case "help", "--help", "-h":
		cli.PrintHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		cli.PrintHelp()
		os.Exit(1)
	}
}
