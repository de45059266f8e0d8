package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	"github.com/jStrider/grafana-publisher/internal/rules"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and test alert classification rules",
	}
	cmd.AddCommand(newRulesListCmd())
	cmd.AddCommand(newRulesTestCmd())
	return cmd
}

func newRulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(cfg.AlertRules)
			}

			t := NewTable("#", "NAME", "PATTERNS", "PRIORITY", "TEMPLATE")
			for i, rule := range cfg.AlertRules {
				template := rule.Template
				if template == "" {
					template = cfg.Settings.Defaults.Template
				}
				t.AddRow(
					fmt.Sprintf("%d", i+1),
					rule.Name,
					truncate(strings.Join(rule.Patterns, ", "), 50),
					formatPriority(rule.Priority),
					template,
				)
			}
			t.Render()
			return nil
		},
	}
}

func newRulesTestCmd() *cobra.Command {
	var labels []string
	var description string

	cmd := &cobra.Command{
		Use:   "test <alert-name>",
		Short: "Show which rule an alert name would match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			engine, err := rules.NewEngine(cfg.AlertRules, cfg.Settings.Defaults, log)
			if err != nil {
				return err
			}

			a := alert.Alert{
				Name:        args[0],
				Description: description,
				Labels:      map[string]string{},
			}
			for _, pair := range labels {
				k, v, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid label %q, expected key=value", pair)
				}
				a.Labels[k] = v
			}

			classified := engine.Classify(a)

			if getOutputFormat() != "table" {
				return printOutput(classified)
			}

			fmt.Printf("matched rule: %s\n", classified.Rule)
			fmt.Printf("priority:     %s\n", classified.Priority)
			fmt.Printf("template:     %s\n", classified.Template)
			if len(classified.Fields) > 0 {
				fmt.Println("extra fields:")
				for k, v := range classified.Fields {
					fmt.Printf("  %s: %s\n", k, v)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "label to attach, key=value (repeatable)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "alert description to match against")
	return cmd
}
