// Package cmd provides the sitebuild command-line interface.
//
// Configuration is read, in order of precedence, from command-line flags,
// SITEBUILD_<SECTION>_<KEY> environment variables and the configuration
// file: --config, else SITEBUILD_CONFIG_FILE, else .sitebuild.yml in the
// working directory.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitebuild",
	Short: "Incremental static site builder with a development server",
	Long: `sitebuild compiles a tree of HTML pages into an output directory. Pages may
include partials with <!-- include: path.html -->; every local stylesheet a
page references is compiled per page with Tailwind and renamed
<page>_<name>.css, and referenced scripts are copied alongside.

Without flags sitebuild performs one full build and exits. With --watch it
builds, then watches the source tree, rebuilds only what each change
affects, and serves the output with live reload.

Examples:
  sitebuild                     # one-shot build
  sitebuild --watch             # build, watch and serve on :3000
  sitebuild --watch --port 8080 # serve on another port
  sitebuild graph --format json # print the dependency graph`,
	SilenceUsage: true,
	RunE:         runRoot,
}

var rootFlags *StandardFlags

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .sitebuild.yml, can also use SITEBUILD_CONFIG_FILE env var)")
	pf.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	pf.String("source", "", "source directory (default src)")
	pf.String("output", "", "output directory (default dist)")
	BindFlags(pf, map[string]string{
		"log-level": "log.level",
		"source":    "source",
		"output":    "output",
	})

	rootFlags = AddStandardFlags(rootCmd, "watch", "server")
	rootCmd.PreRun = bindServerFlags
}

// serverBindings maps the server flags of whichever command runs onto
// viper. Binding happens in PreRun because root and serve both define them.
var serverBindings = map[string]string{
	"port": "server.port",
	"host": "server.host",
}

func bindServerFlags(cmd *cobra.Command, _ []string) {
	BindFlags(cmd.Flags(), serverBindings)
}

// initConfig selects the configuration file and enables SITEBUILD_
// environment overrides.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SITEBUILD_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitebuild")
	}

	viper.SetEnvPrefix("SITEBUILD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if err := rootFlags.ValidateFlags(); err != nil {
		return err
	}
	if rootFlags.Watch {
		return runWatch(cmd)
	}
	return runBuild(cmd, args)
}
