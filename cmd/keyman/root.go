package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/config"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/service"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
)

// app carries per-invocation state shared by the subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
	svc     *service.Service

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{v: config.New(), in: in, out: out, errOut: errOut}
}

// execute runs the command line and always releases the service, including
// when a subcommand fails and cobra skips its post-run hooks.
func (a *app) execute(args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	in, out, errOut := a.in, a.out, a.errOut

	root := &cobra.Command{
		Use:   "keyman",
		Short: "Generate license keys and keep them in an encrypted vault",
		Long: `keyman generates license keys and stores them in a single sealed file.
The vault is encrypted with a key derived from a local secret and wrapped
with RSA-OAEP, then sealed with a SHA-512 digest.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.keyman.yaml)")
	flags.String("dir", "", "vault directory")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	bindFlagOrPanic(a.v, flags, "dir", "dir")
	bindFlagOrPanic(a.v, flags, "log.level", "log-level")

	root.AddCommand(
		newInitCmd(a),
		newGenerateCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newCopyCmd(a),
		newDeleteCmd(a),
		newInspectCmd(a),
		newHistoryCmd(a),
		newVersionCmd(a),
	)
	return root
}

func bindFlagOrPanic(v *viper.Viper, flags *pflag.FlagSet, key, flag string) {
	if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return userError{msg: err.Error()}
	}
	a.cfg = cfg

	log, err := config.NewLogger(a.errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return userError{msg: err.Error()}
	}
	a.log = log
	return nil
}

// service opens the vault on first use. Commands that only read the config
// never touch key material.
func (a *app) service() (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, err := service.New(service.OptionsFromConfig(a.cfg, a.log))
	if err != nil {
		return nil, err
	}
	if warn := svc.LoadWarning(); warn != nil {
		fmt.Fprintf(a.errOut, "%s %v\n", warnStyle("warning:"), warn)
	}
	a.svc = svc
	return svc, nil
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	return err
}

// asUserError turns error kinds the user can act on into userError.
func asUserError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, vaulterr.ErrIndex),
		errors.Is(err, vaulterr.ErrInvalidKey):
		return userError{msg: err.Error()}
	case errors.Is(err, vaulterr.ErrPayloadTooLarge):
		return userError{msg: "vault is full: delete a key before adding another"}
	case errors.Is(err, vaulterr.ErrKeyFormat):
		return userError{msg: fmt.Sprintf("key files are unreadable: %v", err)}
	default:
		return err
	}
}
