package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const configTemplate = `grafana:
  url: %q
  token: ${GRAFANA_TOKEN}
  sources:
    - name: default

publishers:
  clickup:
    enabled: true
    token: ${CLICKUP_TOKEN}
    list_id: %q
    field_mappings:
      priority:
        field_name: Priority
        type: drop_down

alert_rules:
  - name: disk-space
    patterns:
      - "disk.*space"
      - "filesystem.*full"
    priority: high
    template: default_alert

templates:
  default_alert:
    title: "[{customer_id}][{vm}] {alert_name}"
    description: "{description}"

settings:
  defaults:
    priority: medium
    template: default_alert
  deduplication:
    strategy: fingerprint
    update_on: priority_increase
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			configDir := filepath.Join(home, ".config", "grafana-publisher")
			configFile := filepath.Join(configDir, "config.yaml")

			if _, err := os.Stat(configFile); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configFile)
			}

			reader := bufio.NewReader(os.Stdin)

			grafanaURL, err := prompt(reader, "Grafana URL (e.g. https://grafana.example.com): ")
			if err != nil {
				return err
			}
			grafanaToken, err := promptSecret("Grafana service account token: ")
			if err != nil {
				return err
			}
			clickupToken, err := promptSecret("ClickUp API token: ")
			if err != nil {
				return err
			}
			listID, err := prompt(reader, "ClickUp list ID: ")
			if err != nil {
				return err
			}

			if err := os.MkdirAll(configDir, 0o700); err != nil {
				return err
			}

			content := fmt.Sprintf(configTemplate, grafanaURL, listID)
			if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
				return err
			}

			// Tokens live in the env file, not in the config itself.
			envFile := filepath.Join(configDir, ".env")
			env := fmt.Sprintf("GRAFANA_TOKEN=%s\nCLICKUP_TOKEN=%s\n", grafanaToken, clickupToken)
			if err := os.WriteFile(envFile, []byte(env), 0o600); err != nil {
				return err
			}

			fmt.Printf("\nWrote %s\n", configFile)
			fmt.Printf("Wrote %s (keep it private)\n", envFile)
			fmt.Println("Run 'grafana-publisher doctor' to verify connectivity.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	value, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func promptSecret(label string) (string, error) {
	fmt.Print(label)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
