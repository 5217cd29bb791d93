package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/config"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/schema"
)

var (
	initDir   string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", "", "Config directory (default ~/.intentguard)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap intentguard configuration",
	Long: `Creates the config directory with a default policy, intent schemas,
service settings and a dotenv template.

  policy.yaml    policy rule tables (restricted regions, budgets, hotel rules)
  schemas.yaml   required/optional fields and budget bands per action
  config.yaml    service settings (addresses, paths, payment base URL)
  .env.example   environment variables, including the Gemini API key`,
	RunE: runInit,
}

const defaultSettingsYAML = `# intentguard service settings
# Every key can also be set as INTENTGUARD_<KEY> or with the matching flag.
http_addr: ":5001"
grpc_port: 50051
public_url: "http://localhost:5001"
allowed_origin: ""
gemini_model: "gemini-2.0-flash"
`

const defaultDotEnv = `# Copy to .env and fill in.
GEMINI_API_KEY=
INTENTGUARD_PUBLIC_URL=http://localhost:5001
`

func runInit(cmd *cobra.Command, args []string) error {
	dir := initDir
	if dir == "" {
		dir = config.Dir()
	}
	if err := os.MkdirAll(filepath.Join(dir, "approvals"), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	schemas, err := schema.DefaultYAML()
	if err != nil {
		return err
	}

	files := []struct {
		name    string
		content string
	}{
		{"policy.yaml", policy.DefaultConfigYAML()},
		{"schemas.yaml", schemas},
		{"config.yaml", defaultSettingsYAML},
		{".env.example", defaultDotEnv},
	}

	var created []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		wrote, err := writeIfMissing(path, f.content)
		if err != nil {
			return err
		}
		if wrote {
			created = append(created, path)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "intentguard init complete.")
	fmt.Fprintln(out)
	if len(created) > 0 {
		fmt.Fprintln(out, "Created:")
		for _, path := range created {
			fmt.Fprintf(out, "  %s\n", path)
		}
	} else {
		fmt.Fprintln(out, "All files already exist (use --force to overwrite).")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Verify:")
	fmt.Fprintln(out, "  intentguard doctor")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Evaluate a plan:")
	fmt.Fprintln(out, `  intentguard evaluate -t "Book a flight from Delhi to Mumbai" -p "1. Book flight from Delhi to Mumbai on 2026-03-20 via makemytrip.com" -i`)
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
