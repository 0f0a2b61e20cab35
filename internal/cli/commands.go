package cli

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
	"github.com/OFiDCrypt/giddy-swaps/internal/schema"
)

// newRunCommand starts the session loop and, when configured, the Telegram
// driver, then blocks until interrupted.
func (s *runtimeState) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the alternating buy/sell session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if s.core.bot != nil {
				go s.core.bot.Run(ctx)
				s.log.Info().Msg("telegram control enabled; start the session with /start")
				<-ctx.Done()
				if s.core.session.Running() {
					s.core.session.Stop()
				}
				return nil
			}

			s.log.Info().Msg("starting session loop")
			s.core.session.Run(ctx)
			return nil
		},
	}
}

// newSwapCommand runs one manual swap through the full fallback cascade.
func (s *runtimeState) newSwapCommand() *cobra.Command {
	var sell bool
	cmd := &cobra.Command{
		Use:   "swap <amount>",
		Short: "Execute one swap (USDC->GIDDY, or GIDDY->USDC with --sell)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := registry.USDC, registry.GIDDY
			if sell {
				input, output = registry.GIDDY, registry.USDC
			}
			amount, err := input.BaseUnits(args[0])
			if err != nil {
				return err
			}
			if amount == 0 {
				return clierr.New(clierr.CodeUsage, "amount must be positive")
			}

			outcome, err := s.core.orchestrator.Swap(cmd.Context(), model.SwapRequest{
				Input:  input,
				Output: output,
				Amount: amount,
			})
			if err != nil {
				return err
			}
			if !outcome.Committed() {
				return clierr.New(clierr.CodeExhausted, outcome.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "swapped %s %s -> %s %s via %s\ntxid: %s\n",
				input.Display(outcome.InAmount), input.Symbol,
				output.Display(outcome.OutAmount), output.Symbol,
				outcome.Tier, outcome.Signature)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sell, "sell", false, "Swap GIDDY back to USDC")
	return cmd
}

func (s *runtimeState) newBalancesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Print wallet balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := s.core.balances.Snapshot(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "USDC:  %s\nGIDDY: %s\nSOL:   %s\n",
				registry.USDC.Display(snap.Token(registry.USDC.Mint)),
				registry.GIDDY.Display(snap.Token(registry.GIDDY.Mint)),
				model.DisplaySOL(snap.Native))
			return nil
		},
	}
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent swap outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes, err := s.core.store.List(limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "read history", err)
			}
			if len(outcomes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no swaps recorded")
				return nil
			}
			for _, o := range outcomes {
				if o.Committed() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  tier=%s  out=%d  %s\n",
						o.CorrelationID, o.Status, o.Tier, o.OutAmount, o.Signature)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", o.CorrelationID, o.Status, o.Err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum outcomes to list")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := schema.Describe(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "encode schema", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
