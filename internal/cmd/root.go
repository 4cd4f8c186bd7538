package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "grainmatch",
	Short: "Sony FX30 sensor grain synthesis",
	Long: `GrainMatch synthesizes the sensor grain of a Sony FX30 at a given ISO.

It generates seeded luma and chroma noise fields from a per-ISO parameter
table, composites them over frames with shadow-weighted strength, and writes
the combined image together with its debug passes.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("output-dir", "./frames", "Output directory for rendered frames")
	rootCmd.PersistentFlags().String("camera-db", "grainmatch.db", "SQLite database holding named camera settings")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	mustBind(rootCmd, "output-dir", "output-dir")
	mustBind(rootCmd, "camera-db", "camera-db")
	mustBind(rootCmd, "verbose", "verbose")
}

// mustBind binds a persistent or local flag of cmd to a viper key.
func mustBind(cmd *cobra.Command, key, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("GRAINMATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

func initLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// cmdLog returns the command logger, or the default logger before
// initLogging has run.
func cmdLog() *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
