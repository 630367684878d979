package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	baseoptions "s7link/pkg/generic/options"
	"s7link/pkg/session"
)

func TestConnectionString(t *testing.T) {
	o := NewDefaultOptions()
	o.Address = "s7:tcp://10.0.0.1?slot=2"
	o.Rack = "1"
	o.Model = "s7300"
	s, err := o.ConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "s7:tcp://10.0.0.1?model=s7300&rack=1&slot=2", s)

	o.Address = "10.0.0.1"
	_, err = o.ConnectionString()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	o := NewDefaultOptions()
	assert.Empty(t, ValidateConnection(o))
	assert.Empty(t, ValidateWatch(o))
	assert.Empty(t, ValidateServe(o))
	assert.Empty(t, ValidateSimulator(o))

	o.Address = "nope"
	o.Timeout = 0
	o.Output = "xml"
	o.Tags = append(o.Tags, session.Item{Name: "bad", Address: "%Z1"})
	errs := ValidateConnection(o)
	require.Len(t, errs, 4)
	assert.Equal(t, "address", errs[0].Field)
	assert.Equal(t, "timeout", errs[1].Field)
	assert.Equal(t, "output", errs[2].Field)
	assert.Equal(t, "tags[0].address", errs[3].Field)

	o.Cycle = 0
	o.MQTT.Broker = "localhost"
	assert.Len(t, ValidateWatch(o), 2)

	o.Port = "http"
	o.CertFile = "cert.pem"
	assert.Len(t, ValidateServe(o), 2)

	o.Simulator.Listen = "102"
	o.Simulator.PDULength = 100
	assert.Len(t, ValidateSimulator(o), 3)
}

func TestConfigFileWithFlagPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "s7link.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
address: s7:tcp://192.168.0.10
timeout: 2000000000
cycle: 500000000
tags:
- name: speed
  address: "%DB1:0:REAL"
- name: count
  address: "%DB1:4:INT"
  value: 7
`), 0o600))

	o := NewDefaultOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	o.AddWatchFlags(fs)
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "")
	args := []string{"--config", file, "--cycle", "3s"}
	require.NoError(t, fs.Parse(args))
	require.NoError(t, baseoptions.ParseAndApplyConfigFile(o, fs, args))

	assert.Equal(t, "s7:tcp://192.168.0.10", o.Address)
	assert.Equal(t, 2*time.Second, o.Timeout)
	assert.Equal(t, 3*time.Second, o.Cycle)
	require.Len(t, o.Tags, 2)
	assert.Equal(t, "speed", o.Tags[0].Name)
	assert.Equal(t, float64(7), o.Tags[1].Value)
	assert.Empty(t, ValidateConnection(o))
}
