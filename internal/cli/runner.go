// Package cli wires the whole bot together behind a cobra command tree:
// the long-running session (run), one-shot swaps, balance and history reads.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/OFiDCrypt/giddy-swaps/internal/audit"
	"github.com/OFiDCrypt/giddy-swaps/internal/bot"
	"github.com/OFiDCrypt/giddy-swaps/internal/config"
	"github.com/OFiDCrypt/giddy-swaps/internal/engine"
	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/httpx"
	"github.com/OFiDCrypt/giddy-swaps/internal/ledger"
	"github.com/OFiDCrypt/giddy-swaps/internal/logging"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/oracle"
	"github.com/OFiDCrypt/giddy-swaps/internal/orchestrator"
	"github.com/OFiDCrypt/giddy-swaps/internal/providers"
	"github.com/OFiDCrypt/giddy-swaps/internal/providers/dlmm"
	"github.com/OFiDCrypt/giddy-swaps/internal/providers/jupiter"
	"github.com/OFiDCrypt/giddy-swaps/internal/providers/ultra"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
	"github.com/OFiDCrypt/giddy-swaps/internal/session"
	"github.com/OFiDCrypt/giddy-swaps/internal/version"
	"github.com/OFiDCrypt/giddy-swaps/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
}

func NewRunner() *Runner {
	return &Runner{stdout: os.Stdout, stderr: os.Stderr}
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	if state.core != nil {
		state.core.close()
	}
	if err == nil {
		return 0
	}
	fmt.Fprintf(r.stderr, "error: %v\n", err)
	return clierr.ExitCode(err)
}

type runtimeState struct {
	runner     *Runner
	configPath string
	settings   config.Settings
	log        zerolog.Logger
	root       *cobra.Command
	core       *core
}

// core is the assembled bot: every collaborator constructed once, shared by
// all commands.
type core struct {
	wallet       *wallet.Wallet
	chain        *ledger.Client
	balances     *oracle.Oracle
	store        *audit.Store
	recorder     *audit.Recorder
	orchestrator *orchestrator.Orchestrator
	session      *session.Controller
	bot          *bot.Bot
}

func (c *core) close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Tiered-fallback swap bot for the USDC/GIDDY pair",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "version", "schema":
				return nil
			}
			settings, err := config.Load(s.configPath)
			if err != nil {
				return err
			}
			s.settings = settings
			s.log = logging.New(settings.Logging)
			return s.assemble()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	cmd.PersistentFlags().StringVar(&s.configPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newRunCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newBalancesCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())
	s.root = cmd
	return cmd
}

// assemble builds the core object graph from settings.
func (s *runtimeState) assemble() error {
	w, err := wallet.Load(s.settings.Wallet.KeypairPath)
	if err != nil {
		return err
	}

	chain := ledger.New(s.settings.RPC.URL, w, s.log, ledger.Options{
		ConfirmTimeout: s.settings.RPC.ConfirmTimeout,
		PollInterval:   s.settings.RPC.PollInterval,
	})
	balances := oracle.New(chain, w.PublicKey(), []model.Asset{registry.USDC, registry.GIDDY}, s.log)

	store, err := audit.OpenStore(s.settings.Audit.DBPath, s.settings.Audit.LockPath)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "open outcome store", err)
	}
	recorder := audit.NewRecorder(s.settings.Audit.Dir, store, s.log)

	httpClient := httpx.New(s.settings.Providers.HTTPTimeout, s.settings.Providers.HTTPRetries)
	eng := engine.New(w, chain, s.log)
	owner := w.PublicKey().String()

	primary := ultra.New(httpClient, s.settings.Providers.UltraBaseURL, eng, owner, s.log)
	fallbacks := []providers.Provider{
		jupiter.New(httpClient, s.settings.Providers.QuoteBaseURL, eng, owner, s.settings.Swap.SlippageBps, s.log),
	}
	if s.settings.Swap.UseDLMMFallback {
		fallbacks = append(fallbacks, dlmm.New(chain, w, registry.GiddyUSDCPool, s.settings.Swap.SlippageBps, s.log))
	}

	minReserve := model.SOLToLamports(s.settings.Swap.MinSOLReserve)
	orch := orchestrator.New(balances, chain, recorder, primary, fallbacks, minReserve, s.log)

	minSwap, err := registry.USDC.BaseUnits(s.settings.Swap.MinSwapAmount)
	if err != nil {
		return err
	}
	maxBuy, err := registry.USDC.BaseUnits(s.settings.Swap.MaxBuy)
	if err != nil {
		return err
	}
	initialPhase := model.PhaseBuy
	if s.settings.Swap.InitialDirection == "sell" {
		initialPhase = model.PhaseSell
	}

	s.core = &core{
		wallet:       w,
		chain:        chain,
		balances:     balances,
		store:        store,
		recorder:     recorder,
		orchestrator: orch,
	}

	var reporter session.Reporter = session.NopReporter{}
	if s.settings.Telegram.Enabled {
		s.core.bot = bot.New(bot.Config{
			BotToken: s.settings.Telegram.BotToken,
			ChatID:   s.settings.Telegram.ChatID,
			APIBase:  s.settings.Telegram.APIBase,
		}, balances, orch, nil, store, s.log)
		reporter = s.core.bot
	}

	s.core.session = session.New(orch, balances, recorder, reporter, session.Config{
		MinReserveLamports: minReserve,
		MinSwap:            minSwap,
		MaxBuy:             maxBuy,
		Interval:           s.settings.Swap.Interval,
		SkipDelay:          s.settings.Swap.SkipDelay,
		RetryDelay:         s.settings.Swap.RetryDelay,
		InitialPhase:       initialPhase,
	}, s.log)

	if s.core.bot != nil {
		s.core.bot.BindSession(s.core.session)
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}
