package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/audit"
	"github.com/ppiankov/intentguard/internal/config"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/schema"
	"github.com/ppiankov/intentguard/internal/store"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and diagnose issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func fileCheck(label, path, fix string) checkResult {
	if _, err := os.Stat(path); err != nil {
		return checkResult{label: label, ok: false, detail: "missing (defaults in use): " + path, fix: fix}
	}
	return checkResult{label: label, ok: true, detail: path}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	// 1. Config directory.
	dir := config.Dir()
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		checks = append(checks, checkResult{label: "config directory", ok: true, detail: dir})
	} else {
		checks = append(checks, checkResult{label: "config directory", ok: false, detail: "missing", fix: "intentguard init"})
	}

	// 2. Policy file parses and validates.
	checks = append(checks, fileCheck("policy.yaml", settings.PolicyPath, "intentguard init-policy"))
	if _, hash, err := policy.LoadConfigWithHash(settings.PolicyPath); err != nil {
		checks = append(checks, checkResult{label: "policy rules", ok: false, detail: err.Error(), fix: "fix the policy file or regenerate it"})
	} else {
		checks = append(checks, checkResult{label: "policy rules", ok: true, detail: hash})
	}

	// 3. Schema overrides.
	if _, err := schema.Load(settings.SchemaPath); err != nil {
		checks = append(checks, checkResult{label: "intent schemas", ok: false, detail: err.Error()})
	} else {
		checks = append(checks, checkResult{label: "intent schemas", ok: true, detail: "loaded"})
	}

	// 4. Audit chain.
	if _, err := os.Stat(settings.AuditLogPath); err == nil {
		res := audit.Verify(settings.AuditLogPath)
		if res.Valid {
			checks = append(checks, checkResult{label: "audit log", ok: true, detail: fmt.Sprintf("%d entries verified", res.Lines)})
		} else {
			checks = append(checks, checkResult{label: "audit log", ok: false, detail: fmt.Sprintf("broken at line %d: %s", res.ErrorLine, res.Error)})
		}
	} else {
		checks = append(checks, checkResult{label: "audit log", ok: true, detail: "not created yet"})
	}

	// 5. Database migrations.
	if st, err := store.Open(settings.DBPath); err != nil {
		checks = append(checks, checkResult{label: "database", ok: false, detail: err.Error()})
	} else {
		_ = st.Close()
		checks = append(checks, checkResult{label: "database", ok: true, detail: settings.DBPath})
	}

	// 6. Plan generation.
	if settings.GeminiAPIKey != "" {
		checks = append(checks, checkResult{label: "gemini api key", ok: true, detail: "configured (" + settings.GeminiModel + ")"})
	} else {
		checks = append(checks, checkResult{label: "gemini api key", ok: false, detail: "not set, fallback questions only", fix: "set GEMINI_API_KEY in .env"})
	}

	// Print results.
	out := cmd.OutOrStdout()
	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Fprintln(out, line)
	}

	if hasFailures {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "All checks passed.")
	return nil
}
