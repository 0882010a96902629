// Package cli implements tutorctl, a terminal client for the tutoring API.
// It shares the session store with other tools through the OS keyring or a
// token file.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/tutorapi"
	"github.com/ambiyansyah-risyal/tutorapi/config"
	"github.com/ambiyansyah-risyal/tutorapi/tokenstore"
)

// Store selectors accepted by --store.
const (
	storeAuto    = "auto"
	storeKeyring = tokenstore.BackendKeyring
	storeFile    = tokenstore.BackendFile
)

type globalFlags struct {
	apiURL    string
	origin    string
	env       string
	configDir string
	store     string
	tokenFile string
	debug     bool
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer
	flags  globalFlags

	cfg     *config.Config
	client  *tutorapi.Client
	backend string
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "tutorctl",
		Short: "Command-line client for the tutoring platform API",
		Long: `tutorctl signs in to the tutoring platform and issues authenticated API
requests. Sessions are stored in the OS keyring when one is available and in a
token file otherwise, and are refreshed automatically when they expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.prepare()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.apiURL, "api-url", "", "API base URL (overrides TUTOR_API_URL)")
	pf.StringVar(&a.flags.origin, "origin", "", "site origin used to derive the API and WebSocket URLs")
	pf.StringVar(&a.flags.env, "env", "", "environment selecting .env.<env> (default TUTOR_ENV or development)")
	pf.StringVar(&a.flags.configDir, "config-dir", "", "directory holding .env files (default working directory)")
	pf.StringVar(&a.flags.store, "store", storeAuto, "token store: auto, keyring or file")
	pf.StringVar(&a.flags.tokenFile, "token-file", "", "token file used by the file store")
	pf.BoolVar(&a.flags.debug, "debug", false, "log requests, retries and session events")

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newGetCommand(a),
		newStatusCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs tutorctl against the process arguments and exits non-zero on
// failure.
func Execute() {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		pterm.Error.WithWriter(os.Stderr).Println(err)
		os.Exit(1)
	}
}

// prepare loads configuration, opens the token store and builds the client.
func (a *app) prepare() error {
	cfg, err := config.Load(config.Options{
		Dir:    a.flags.configDir,
		Env:    a.flags.env,
		Origin: a.flags.origin,
		APIURL: a.flags.apiURL,
	})
	if err != nil {
		return err
	}
	if a.flags.debug {
		cfg.Debug = true
	}
	if a.flags.tokenFile != "" {
		cfg.TokenFile = a.flags.tokenFile
	}
	a.cfg = cfg

	kv, backend, err := a.openStore()
	if err != nil {
		return err
	}
	a.backend = backend

	opts := append(cfg.ClientOptions(),
		tutorapi.WithKeyValueStore(kv),
		tutorapi.WithNavigator(tutorapi.NavigatorFunc(a.sessionEnded)),
	)
	if cfg.Debug {
		opts = append(opts, tutorapi.WithLogger(tutorapi.NewSimpleLoggerTo(a.errOut)))
	}

	client := tutorapi.New(cfg.APIURL, opts...)
	if !client.IsValid() {
		return client.ValidationError()
	}
	a.client = client
	return nil
}

func (a *app) openStore() (tutorapi.KeyValueStore, string, error) {
	switch a.flags.store {
	case storeAuto:
		return tokenstore.Open(a.cfg.KeyringService, a.cfg.TokenFile)
	case storeKeyring:
		ring, err := tokenstore.OpenKeyring(a.cfg.KeyringService)
		if err != nil {
			return nil, "", err
		}
		return ring, storeKeyring, nil
	case storeFile:
		path := a.cfg.TokenFile
		if path == "" {
			p, err := tokenstore.DefaultPath(a.cfg.KeyringService)
			if err != nil {
				return nil, "", err
			}
			path = p
		}
		f, err := tokenstore.OpenFile(path)
		if err != nil {
			return nil, "", errors.Wrap(err, "open token file")
		}
		return f, storeFile, nil
	default:
		return nil, "", errors.Errorf("unknown token store %q (want auto, keyring or file)", a.flags.store)
	}
}

func (a *app) sessionEnded(reason string) {
	pterm.Warning.WithWriter(a.errOut).Println(fmt.Sprintf("Session ended (%s). Run 'tutorctl login' to sign in again.", reason))
}

func (a *app) success(format string, args ...any) {
	pterm.Success.WithWriter(a.out).Println(fmt.Sprintf(format, args...))
}

func (a *app) info(format string, args ...any) {
	pterm.Info.WithWriter(a.out).Println(fmt.Sprintf(format, args...))
}
