package app

import (
	"context"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"s7link/cmd/s7link/options"
	"s7link/pkg/runtime"
	"s7link/pkg/simulator"
	"s7link/pkg/storage"
)

func newReadCmd() *cobra.Command {
	return newCommand("read", "read [TAG...]", "Read tags once",
		func(o *options.Options, fs *pflag.FlagSet) { o.AddFlags(fs) },
		[]options.Check{options.ValidateConnection},
		runRead)
}

func runRead(cmd *cobra.Command, o *options.Options, args []string) error {
	items, err := readItems(o, args)
	if err != nil {
		return err
	}
	s, err := o.NewSession()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	defer closeWithin(o.Timeout, "session", s.Close)

	r, err := s.Read(ctx, items)
	if r != nil {
		if perr := printResponse(cmd.OutOrStdout(), o.Output, r); perr != nil {
			return perr
		}
	}
	return err
}

func newWriteCmd() *cobra.Command {
	return newCommand("write", "write TAG=VALUE...", "Write tags once",
		func(o *options.Options, fs *pflag.FlagSet) { o.AddFlags(fs) },
		[]options.Check{options.ValidateConnection},
		runWrite)
}

func runWrite(cmd *cobra.Command, o *options.Options, args []string) error {
	items, err := writeItems(o, args)
	if err != nil {
		return err
	}
	s, err := o.NewSession()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	defer closeWithin(o.Timeout, "session", s.Close)

	r, err := s.Write(ctx, items)
	if r != nil {
		if perr := printResponse(cmd.OutOrStdout(), o.Output, r); perr != nil {
			return perr
		}
	}
	return err
}

func newWatchCmd() *cobra.Command {
	return newCommand("watch", "watch [TAG...]", "Read tags every cycle, optionally publishing them to MQTT",
		func(o *options.Options, fs *pflag.FlagSet) {
			o.AddFlags(fs)
			o.AddWatchFlags(fs)
		},
		[]options.Check{options.ValidateConnection, options.ValidateWatch},
		runWatch)
}

func runWatch(cmd *cobra.Command, o *options.Options, args []string) error {
	items, err := readItems(o, args)
	if err != nil {
		return err
	}
	c, err := o.Config()
	if err != nil {
		return err
	}
	closers := []runtime.LabeledCloser{{Label: "session", Closer: c.Session.Close}}
	if c.Publisher != nil {
		p := c.Publisher
		closers = append(closers, runtime.LabeledCloser{Label: "mqtt", Closer: func(context.Context) error {
			p.Close()
			return nil
		}})
	}

	ctx, cancel := signalContext()
	defer cancel()
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		r, err := c.Session.Read(ctx, items)
		if err != nil {
			klog.V(2).InfoS("Failed to read tags", "plc", o.Address, "error", err)
		}
		if r == nil {
			return
		}
		if c.Publisher != nil {
			if err := c.Publisher.Publish(r, time.Now()); err != nil {
				klog.V(1).InfoS("Failed to publish MQTT", "topic", o.MQTT.Topic, "error", err)
			}
			return
		}
		if err := printResponse(cmd.OutOrStdout(), o.Output, r); err != nil {
			klog.V(2).InfoS("Failed to print tags", "error", err)
		}
	}, o.Cycle)

	sctx, scancel := context.WithTimeout(context.Background(), o.Timeout)
	defer scancel()
	return shutdown(sctx, closers)
}

func newSimCmd() *cobra.Command {
	return newCommand("sim", "sim", "Run a simulated S7 PLC; tags with values in the config file are preset",
		func(o *options.Options, fs *pflag.FlagSet) { o.AddSimulatorFlags(fs) },
		[]options.Check{options.ValidateSimulator},
		runSim)
}

func runSim(_ *cobra.Command, o *options.Options, _ []string) error {
	device := simulator.New(simulator.WithPDULength(o.Simulator.PDULength))
	for _, tag := range o.Tags {
		if tag.Value == nil {
			continue
		}
		if err := device.Preset(tag.Address, tag.Value); err != nil {
			return err
		}
	}
	var store *storage.FsClient
	if o.Simulator.StateDir != "" {
		var err error
		if store, err = storage.NewFsClient(o.Simulator.StateDir); err != nil {
			return err
		}
		if err = device.Load(store); err != nil {
			return err
		}
	}
	l, err := net.Listen("tcp", o.Simulator.Listen)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	err = device.Serve(ctx, l)
	stats := device.Stats()
	klog.V(1).InfoS("Simulated PLC stopped", "connections", stats.Connections, "reads", stats.Reads, "writes", stats.Writes)
	if store != nil {
		if serr := device.Save(store); serr != nil {
			klog.V(1).InfoS("Failed to save simulated memory", "dir", o.Simulator.StateDir, "error", serr)
			return utilserrors.NewAggregate([]error{err, serr})
		}
	}
	return err
}

func closeWithin(d time.Duration, label string, closer func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := shutdown(ctx, []runtime.LabeledCloser{{Label: label, Closer: closer}}); err != nil {
		klog.V(2).InfoS("Failed to close", "service", label, "error", err)
	}
}
