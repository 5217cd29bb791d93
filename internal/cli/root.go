package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/intentguard/internal/config"
	"github.com/ppiankov/intentguard/internal/logging"
)

var (
	cfgFile    string
	envFile    string
	debug      bool
	v          = newViper()
	settings   config.Settings
	settingsOK bool
)

var rootCmd = &cobra.Command{
	Use:   "intentguard",
	Short: "Intent validation and policy gate for AI-generated travel and payment plans",
	Long: "Turns AI-generated plan text into schema-checked intent tokens, validates them\n" +
		"against policy rule tables, and records an ordered execution trace ending in\n" +
		"APPROVED, REQUIRES_APPROVAL or BLOCKED. Nothing is paid for unless approved.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(debug)
		return loadSettings()
	},
}

func newViper() *viper.Viper {
	nv, err := config.New()
	if err != nil {
		panic(err)
	}
	return nv
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	pf.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading INTENTGUARD_* variables")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")
	pf.String("policy", "", "Path to policy YAML (default ~/.intentguard/policy.yaml)")
	pf.String("schemas", "", "Path to intent schema overrides YAML")
	pf.String("audit-log", "", "Path to audit log JSONL file")
	pf.String("approvals-dir", "", "Directory for approval records")
	pf.String("db", "", "Path to SQLite database")
	bindFlag(config.KeyPolicy, pf.Lookup("policy"))
	bindFlag(config.KeySchemas, pf.Lookup("schemas"))
	bindFlag(config.KeyAuditLog, pf.Lookup("audit-log"))
	bindFlag(config.KeyApprovalsDir, pf.Lookup("approvals-dir"))
	bindFlag(config.KeyDB, pf.Lookup("db"))
}

// loadSettings resolves flags, .env, env vars and the config file once
// per process.
func loadSettings() error {
	if settingsOK {
		return nil
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	s, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	settings = s
	settingsOK = true
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
