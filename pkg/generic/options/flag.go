package options

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

const (
	_flagHelp          = "help"
	_flagDefaultConfig = "default-config"
)

// Optioner is implemented by command options that embed BaseOptions.
type Optioner interface {
	GetBaseOptions() *BaseOptions
}

// BaseOptions are shared by every command: the config file and logging.
type BaseOptions struct {
	ConfigFile string               `json:"-"`
	Logging    LoggingConfiguration `json:"logging"`
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, "config", "c", bo.ConfigFile,
		"YAML file with the initial configuration. Flags given on the command line override it.")
	bo.Logging.BindLoggingFlags(fs)
	fs.BoolP(_flagHelp, "h", false, fmt.Sprintf("help for %s", cmd.Name()))
	fs.Bool(_flagDefaultConfig, false, "Print the default configuration as YAML and exit")
	setUsage(cmd, fs)
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

// setUsage prints fs only, cobra's own functions would also list the
// inherited flags.
func setUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

func mustGetBool(fs *pflag.FlagSet, name string) bool {
	v, err := fs.GetBool(name)
	if err != nil {
		klog.ErrorS(err, "Flag is not a bool", "flag", name)
		os.Exit(1)
	}
	return v
}

func PrintHelpAndExitIfRequested(cmd *cobra.Command, fs *pflag.FlagSet) {
	if mustGetBool(fs, _flagHelp) {
		_ = cmd.Help()
		os.Exit(0)
	}
}

func PrintDefaultConfigAndExitIfRequested(config interface{}, fs *pflag.FlagSet) {
	if !mustGetBool(fs, _flagDefaultConfig) {
		return
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal default config to yaml")
		os.Exit(1)
	}
	fmt.Println("# Default configuration. Save it, edit it and pass it with --config.")
	fmt.Printf("\n%s\n", data)
	os.Exit(0)
}

// ParseAndApplyConfigFile loads the file named by --config into o, then
// parses args into fs again so that explicit flags win over the file.
func ParseAndApplyConfigFile(o Optioner, fs *pflag.FlagSet, args []string) error {
	file := o.GetBaseOptions().ConfigFile
	if len(file) == 0 {
		return nil
	}
	if err := loadConfigFile(file, o); err != nil {
		klog.ErrorS(err, "Failed to load config file", "file", file)
		return err
	}
	return fs.Parse(args)
}

// loadConfigFile rejects unknown keys, a misspelt key would otherwise be
// silently ignored.
func loadConfigFile(file string, out interface{}) error {
	path, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err = yaml.UnmarshalStrict(data, out); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}
