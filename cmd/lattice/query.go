package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [cypher]",
	Short: "Run one query and print its records",
	Long: `Runs a single query and prints the records as a table or JSON.

Parameters are passed with --param name=value. Values that parse as JSON keep
their type (numbers, booleans, lists, maps); anything else is a string.`,
	Example: `  lattice query "MATCH (p:Person {name: $name}) RETURN p.age" --param name=ada
  lattice query "RETURN 1" --policy immediate --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policyFlag, _ := cmd.Flags().GetString("policy")
		delay, _ := cmd.Flags().GetDuration("delay")
		rawParams, _ := cmd.Flags().GetStringArray("param")
		formatFlag, _ := cmd.Flags().GetString("format")

		policy, err := domain.ParsePolicy(policyFlag)
		if err != nil {
			return err
		}
		if policy == domain.PolicyManual {
			// The session would be released when this process exits.
			return errors.New("the manual policy needs a long-lived process; use lattice serve and release with lattice release")
		}
		format, err := tui.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		params, err := parseParams(rawParams)
		if err != nil {
			return err
		}

		client, _, logger, err := newClient(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		defer func() {
			if err := client.Close(ctx); err != nil {
				logger.Warn("client close failed", "err", err)
			}
		}()

		cur, err := client.RunPolicy(ctx, policy, args[0], params, delay)
		if err != nil {
			return err
		}
		records, err := cur.List(ctx)
		if err != nil {
			return err
		}

		printer := &tui.Printer{Out: cmd.OutOrStdout(), Format: format}
		if format == tui.FormatTable && tui.IsTerminal(os.Stdout) {
			printer.Renderer = tui.NewRenderer(tui.TerminalWidth(os.Stdout))
		}
		return printer.Print(records, "")
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().String("policy", "close_on_exhaust", "Disposal policy: immediate, close_on_exhaust or deferred (manual needs lattice serve)")
	queryCmd.Flags().Duration("delay", 0, "Close delay for the deferred policy (0 uses auto_close_timeout)")
	queryCmd.Flags().StringArrayP("param", "p", nil, "Query parameter as name=value (repeatable)")
	queryCmd.Flags().StringP("format", "f", "table", "Output format: table or json")
}

func parseParams(raw []string) (domain.Params, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(domain.Params, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q (want name=value)", kv)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			params[name] = domain.String(value)
			continue
		}
		v, err := domain.FromAny(decoded)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}
