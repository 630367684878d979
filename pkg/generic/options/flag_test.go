package options

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/component-base/config"
	"sigs.k8s.io/yaml"
)

type testOptions struct {
	Name string `json:"name"`
	BaseOptions
}

func newTestFlags(t *testing.T, o *testOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringVar(&o.Name, "name", o.Name, "")
	o.AddBaseFlags(&cobra.Command{Use: "test"}, fs)
	return fs
}

func writeConfig(t *testing.T, content string) string {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestParseAndApplyConfigFile(t *testing.T) {
	file := writeConfig(t, "name: from-file\nlogging:\n  format: json\n  verbosity: 4\n")
	o := &testOptions{BaseOptions: NewDefaultBaseOptions()}
	fs := newTestFlags(t, o)
	args := []string{"-c", file, "--v", "5"}
	require.NoError(t, fs.Parse(args))
	require.NoError(t, ParseAndApplyConfigFile(o, fs, args))

	assert.Equal(t, "from-file", o.Name)
	assert.Equal(t, "json", o.Logging.Format)
	assert.Equal(t, config.VerbosityLevel(5), o.Logging.Verbosity)
}

func TestParseAndApplyConfigFileUnknownKey(t *testing.T) {
	file := writeConfig(t, "nmae: typo\n")
	o := &testOptions{BaseOptions: NewDefaultBaseOptions()}
	fs := newTestFlags(t, o)
	args := []string{"--config", file}
	require.NoError(t, fs.Parse(args))
	assert.Error(t, ParseAndApplyConfigFile(o, fs, args))
}

func TestLoggingRoundTrip(t *testing.T) {
	in := NewDefaultLoggingConfiguration()
	data, err := yaml.Marshal(&in)
	require.NoError(t, err)
	assert.YAMLEq(t, "format: text\nverbosity: 2\n", string(data))

	out := NewDefaultLoggingConfiguration()
	require.NoError(t, yaml.Unmarshal([]byte("verbosity: 6\n"), &out))
	assert.Equal(t, "text", out.Format)
	assert.Equal(t, config.VerbosityLevel(6), out.Verbosity)
}
