// Package cli is the itms command tree. Without a subcommand it starts the
// console; the subcommands drive the same review core from scripts.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/config"
	"github.com/itmstools/itms_console/pkg/logging"
	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/session"
	"github.com/itmstools/itms_console/pkg/store"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.1.0"

var errNotLoggedIn = errors.New("not logged in; run `itms login` first")

// New builds the root command
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "itms",
		Short: "Equipment review console",
		Long: heredoc.Doc(`
			Review and approve equipment inspection records.

			Run without arguments to open the interactive console.
		`),
		Example: heredoc.Doc(`
			$ itms
			$ itms login --email admin@example.com
			$ itms reviews list --barcode BC-12 --from 2024-05-01
			$ itms reviews approve 64f0c2
		`),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			return runConsole(cmd.Context(), e)
		}),
	}

	cmd.PersistentFlags().String("data-dir", "", "Data directory (default ~/.itms, or $ITMS_DATA_DIR)")
	cmd.PersistentFlags().String("api-url", "", "Override the API base URL")
	cmd.MarkPersistentFlagDirname("data-dir")

	cmd.AddCommand(
		LoginCmd(),
		LogoutCmd(),
		WhoamiCmd(),
		ReviewsCmd(),
		ExportCmd(),
		StatsCmd(),
		HistoryCmd(),
	)
	return cmd
}

// env is the wiring shared by every command
type env struct {
	cfg      *config.Config
	log      *logging.Logger
	db       *store.DB
	recorder *store.Recorder
	sessions *session.Store
	client   *api.Client
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, fmt.Errorf("getting data-dir flag value: %w", err)
	}
	if dataDir == "" {
		if dataDir, err = config.DefaultDataDir(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	if apiURL, _ := cmd.Flags().GetString("api-url"); strings.TrimSpace(apiURL) != "" {
		cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	}

	log, err := logging.New(cfg.DataDir, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log.WithField("version", Version).WithField("command", cmd.CommandPath()).Debug("starting")

	e := &env{cfg: cfg, log: log}
	e.db, e.recorder = store.TryOpenRecorder(cfg.JournalPath(), log)

	sessOpts := []session.Option{session.WithLogger(log)}
	if e.db != nil {
		sessOpts = append(sessOpts, session.WithPersister(e.db))
	}
	e.sessions = session.NewStore(sessOpts...)
	if _, _, err := e.sessions.Restore(ctx); err != nil {
		log.WithError(err).Warn("could not restore session")
	}

	e.client, err = api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithImageHost(cfg.ImageHost()),
		api.WithTokenSource(e.sessions),
		api.WithLogger(log),
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("api client: %w", err)
	}
	return e, nil
}

// Close releases the journal and the log file
func (e *env) Close() {
	if e.db != nil {
		e.db.Close()
	}
	e.log.Close()
}

func (e *env) requireSession() (model.Session, error) {
	sess, ok := e.sessions.Current()
	if !ok {
		return model.Session{}, errNotLoggedIn
	}
	return sess, nil
}

func withEnv(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd, args, e)
	}
}
