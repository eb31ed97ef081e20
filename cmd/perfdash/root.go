package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"perfdash/internal/config"
	"perfdash/internal/telemetry"
)

var (
	exit    = os.Exit
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "perfdash",
	Short: "Benchmark performance dashboard",
	Long: `perfdash serves charts and summary statistics for benchmark result files.
Result files are named <date>.<time>-<commit>-<branch>.data and are compared
by putting one or two of them in the URL.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. It is called once by main.main.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'perfdash --help' for usage.")
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("results", "", "Directory holding the result files")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("results_dir", rootCmd.PersistentFlags().Lookup("results"))
}

// initConfig loads and validates the configuration, then sets up logging.
func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}
	if err := loaded.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}
	cfg = loaded

	telemetry.InitLogger(cfg.Verbose, cfg.LogFile)
}
