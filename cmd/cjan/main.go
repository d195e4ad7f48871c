package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/franz/crawl-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "cjan",
		Short: "Crawl Janitor - keep crawl archives consistent",
		Long: `cjan (Crawl Janitor) maintains the on-disk archives written by a web
crawler and its text-processing pipeline. It deletes documents together with
everything derived from them, removes orphaned records and files, merges
several archives into one while dropping duplicate crawls of the same URL,
and checks that an archive's metadata files and directories agree.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Exit statuses
const (
	exitOK        = 0
	exitFailure   = 1
	exitCollision = 2
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/cjan.yaml)")
	rootCmd.PersistentFlags().String("db", "cjan-journal.db", "run journal database (empty disables)")
	rootCmd.PersistentFlags().String("events", "artifacts", "directory for JSONL event logs (empty disables)")
	rootCmd.PersistentFlags().String("report", "", "write a Markdown summary of the run to this file")
	rootCmd.PersistentFlags().Bool("network", false, "treat archives as network storage: retry file operations and tune the journal (default: detect NFS/SMB mounts)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored log output")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("events", rootCmd.PersistentFlags().Lookup("events"))
	viper.BindPFlag("report", rootCmd.PersistentFlags().Lookup("report"))
	viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%v: %w", err, util.ErrInvalidConfig)
	})
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("cjan")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("CJAN")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, util.ErrFilenameCollision):
		return exitCollision
	}
	return exitFailure
}

func main() {
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, util.ErrInvalidConfig) {
			cmd.Usage()
		}
	}
	os.Exit(exitCode(err))
}
