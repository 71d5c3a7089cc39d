package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sameer-m-dev/mongotap/config"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Path to TOML configuration file")
		tapConfigFile = flag.String("tap-config", "", "Path to a single JSON connector configuration")
		check         = flag.Bool("check", false, "Connect to every database (and ping when enabled)")
		verbose       = flag.Bool("verbose", false, "Enable verbose (debug) logging")
		help          = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	var (
		c   *config.Config
		err error
	)
	switch {
	case *configFile != "" && *tapConfigFile != "":
		fmt.Fprintln(os.Stderr, "Configuration error: --config and --tap-config are mutually exclusive")
		os.Exit(2)
	case *tapConfigFile != "":
		c, err = config.LoadTapConfig(*tapConfigFile, *verbose)
	default:
		c, err = config.LoadConfig(*configFile, *verbose)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(c, *check))
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS]\n", os.Args[0])
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --config string")
	fmt.Println("        Path to TOML configuration file")
	fmt.Println("  --tap-config string")
	fmt.Println("        Path to a single JSON connector configuration")
	fmt.Println("  --check")
	fmt.Println("        Connect to every configured database")
	fmt.Println("  --verbose")
	fmt.Println("        Enable verbose (debug) logging")
	fmt.Println("  --help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Printf("  %s --config /path/to/mongotap.toml\n", os.Args[0])
	fmt.Printf("  %s --tap-config config.json --check\n", os.Args[0])
	fmt.Println()
}

func run(c *config.Config, check bool) int {
	log := c.Logger()
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("Error closing metrics", zap.Error(err))
		}
		_ = log.Sync() // #nosec
	}()

	printDatabases(os.Stdout, c)

	if !check {
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownOnSignal(log, cancel)

	clients, err := c.Connect(ctx, c.Ping())
	if err != nil {
		log.Error("Check failed", zap.Error(err))
		return 1
	}
	for name, m := range clients {
		log.Info("Check passed", zap.String("database", name), zap.Any("pool", m.GetPoolStats()))
		m.Close()
	}
	return 0
}

// printDatabases writes one "name<TAB>uri" line per database with the password masked
func printDatabases(w io.Writer, c *config.Config) {
	for _, name := range c.DatabaseNames() {
		db, _ := c.Database(name)
		fmt.Fprintf(w, "%s\t%s\n", name, config.SanitizeURI(db.ConnectionString))
	}
}

func shutdownOnSignal(log *zap.Logger, cancel func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-ch
		log.Info("Signal", zap.String("signal", sig.String()))
		cancel()
	}()
}
