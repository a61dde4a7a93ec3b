package cmd

import (
	"fmt"
	"os"

	"stackctl/internal/app"
	"stackctl/internal/color"
	"stackctl/pkg/logging"

	"github.com/spf13/cobra"
)

// Persistent flags shared by every command.
var (
	configPath     string
	logLevel       string
	logFormat      string
	environment    string
	workDir        string
	nonInteractive bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stackctl",
	Short: "Provision and tear down complete application environments",
	Long: `stackctl drives the lifecycle of one application environment: it plans and
applies the cloud resource graph, connects to the cluster it created, deploys
the Kubernetes workloads and waits for them to roll out. Teardown backs up the
workloads, deletes them and destroys the resource graph leaf to root.

Every mutating step is shown as a plan first and needs explicit approval.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. declined confirmations, failed stages)
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		if err := logging.Init(logging.Options{Level: level, Format: logging.Format(logFormat), Output: os.Stderr}); err != nil {
			return err
		}
		color.Setup(os.Stdout)
		return nil
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "stackctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

// newAppConfig collects the persistent flags into an application config.
func newAppConfig() *app.Config {
	cfg := app.NewConfig(configPath)
	cfg.Environment = environment
	cfg.WorkDir = workDir
	cfg.NonInteractive = nonInteractive
	return cfg
}

// runApplication loads the configuration and runs one lifecycle operation.
func runApplication(cmd *cobra.Command, cfg *app.Config, mode app.Mode) error {
	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(cmd.Context(), mode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: layered ~/.config/stackctl and ./.stackctl)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&environment, "env", "e", "", "environment name, overrides the configuration")
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", "", "project directory, overrides the configuration")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "never prompt; gates without a pre-approval are declined")

	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newDestroyCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
