package options

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/component-base/config"
	"k8s.io/component-base/logs"
	"k8s.io/component-base/logs/registry"
)

const _defaultVerbosity = 2

// visibleLogFlags are the component-base logging flags shown in --help; the
// rest stay settable but hidden.
var visibleLogFlags = sets.New[string]("v", "vmodule", "logging-format")

// LoggingConfiguration is the "logging" block of the config file.
type LoggingConfiguration struct {
	config.LoggingConfiguration
}

func NewDefaultLoggingConfiguration() LoggingConfiguration {
	return LoggingConfiguration{
		config.LoggingConfiguration{
			Format:    "text",
			Verbosity: _defaultVerbosity,
		},
	}
}

func (l *LoggingConfiguration) ValidateAndApply() error {
	o := logs.NewOptions()
	o.Config.Format = l.Format
	o.Config.Verbosity = l.Verbosity
	o.Config.VModule = l.VModule
	return o.ValidateAndApply()
}

type loggingFile struct {
	Format    string                      `json:"format"`
	Verbosity config.VerbosityLevel       `json:"verbosity"`
	VModule   config.VModuleConfiguration `json:"vmodule,omitempty"`
}

func (l *LoggingConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(&loggingFile{
		Format:    l.Format,
		Verbosity: l.Verbosity,
		VModule:   l.VModule,
	})
}

func (l *LoggingConfiguration) UnmarshalJSON(data []byte) error {
	in := &loggingFile{Format: l.Format, Verbosity: l.Verbosity}
	if err := json.Unmarshal(data, in); err != nil {
		return err
	}
	l.Format, l.Verbosity, l.VModule = in.Format, in.Verbosity, in.VModule
	return nil
}

func (l *LoggingConfiguration) BindLoggingFlags(fs *pflag.FlagSet) {
	logsFs := pflag.NewFlagSet("logging", pflag.ContinueOnError)
	logs.BindLoggingFlags(&l.LoggingConfiguration, logsFs)
	logsFs.VisitAll(func(f *pflag.Flag) {
		if !visibleLogFlags.Has(f.Name) {
			f.Hidden = true
			return
		}
		if f.Name == "logging-format" {
			formats := fmt.Sprintf(`"%s"`, strings.Join(registry.LogRegistry.List(), `", "`))
			f.Usage = fmt.Sprintf("Log format, one of %s.", formats)
		}
	})
	fs.AddFlagSet(logsFs)
}
