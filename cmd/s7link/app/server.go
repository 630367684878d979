package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"s7link/cmd/s7link/options"
	"s7link/pkg/generic"
	baseoptions "s7link/pkg/generic/options"
	"s7link/pkg/runtime"
	"s7link/pkg/web"
)

const (
	ComponentS7Link = "s7link"
)

func NewS7LinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   ComponentS7Link,
		Short: "Read and write Siemens S7 PLC tags",
		Long: `s7link talks S7 communication over ISO-on-TCP to S7-300/400/1200/1500 and LOGO! PLCs.
It reads and writes tags from the command line, polls them cyclically, serves them over HTTP
and runs a simulated PLC for testing.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newReadCmd(),
		newWriteCmd(),
		newWatchCmd(),
		newServeCmd(),
		newSimCmd(),
	)
	return cmd
}

type runFunc func(cmd *cobra.Command, o *options.Options, args []string) error

// newCommand parses flags itself, so that a config file can be applied
// between the defaults and the command line.
func newCommand(name, use, short string, addFlags func(*options.Options, *pflag.FlagSet), checks []options.Check, run runFunc) *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use:                use,
		Short:              short,
		Long:               short,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since we disable cobra's flag parsing
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				os.Exit(1)
			}

			// short-circuit on help
			baseoptions.PrintHelpAndExitIfRequested(cmd, cleanFlagSet)

			// short-circuit on defaultconfig
			baseoptions.PrintDefaultConfigAndExitIfRequested(options.NewDefaultOptions(), cleanFlagSet)

			if err := baseoptions.ParseAndApplyConfigFile(o, cleanFlagSet, args); err != nil {
				return err
			}

			if errs := options.Validate(o, checks...); len(errs) != 0 {
				return utilserrors.NewAggregate(errs)
			}

			return run(cmd, o, cleanFlagSet.Args())
		},
	}

	addFlags(o, cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	return cmd
}

func newServeCmd() *cobra.Command {
	return newCommand("serve", "serve", "Serve the PLC tags over an HTTP API",
		func(o *options.Options, fs *pflag.FlagSet) {
			o.AddFlags(fs)
			o.AddServeFlags(fs)
		},
		[]options.Check{options.ValidateConnection, options.ValidateServe},
		runServe)
}

func runServe(_ *cobra.Command, o *options.Options, _ []string) error {
	c, err := o.Config()
	if err != nil {
		return err
	}

	server, err := web.NewServer(generic.Default(), o.Port, c)
	if err != nil {
		return err
	}

	exit, err := server.Serve()
	if err != nil {
		return err
	}
	klog.V(1).InfoS("Server started", "port", o.Port, "plc", o.Address)
	// Graceful shutdown
	// Wait for interrupt signal to gracefully shutdown the server
	exitCh := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be catch, so don't need add it
	signal.Notify(exitCh, syscall.SIGINT, syscall.SIGTERM)
	<-exitCh
	ctx, cancel := context.WithTimeout(context.Background(), o.Wait)
	defer cancel()

	exit(ctx)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// shutdown closes in reverse order of registration.
func shutdown(ctx context.Context, closers []runtime.LabeledCloser) error {
	var errs []error
	for i := len(closers); i > 0; i-- {
		lc := closers[i-1]
		if err := lc.Closer(ctx); err != nil {
			klog.V(2).InfoS("Failed to stop", "service", lc.Label, "error", err)
			errs = append(errs, err)
		}
	}
	return utilserrors.NewAggregate(errs)
}
