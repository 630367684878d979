package options

import (
	"time"

	"github.com/spf13/pflag"
	"s7link/cmd/s7link/config"
	"s7link/pkg/broker"
	baseoptions "s7link/pkg/generic/options"
	"s7link/pkg/plc"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/session"
)

type SimulatorOptions struct {
	Listen    string `json:"listen"`
	PDULength uint16 `json:"pduLength"`
	// StateDir keeps the simulated memory across restarts when set.
	StateDir string `json:"stateDir"`
}

type Options struct {
	Address            string         `json:"address"`
	Rack               string         `json:"rack,omitempty"`
	Slot               string         `json:"slot,omitempty"`
	Model              string         `json:"model,omitempty"`
	Timeout            time.Duration  `json:"timeout"`
	PollInterval       time.Duration  `json:"pollInterval"`
	DialTimeout        time.Duration  `json:"dialTimeout"`
	PollQuantum        time.Duration  `json:"pollQuantum"`
	MaxDisconnectPolls int            `json:"maxDisconnectPolls"`
	Tags               []session.Item `json:"tags,omitempty"`
	Output             string         `json:"output"`

	Cycle time.Duration  `json:"cycle"`
	MQTT  broker.Options `json:"mqtt"`

	Port     string        `json:"port"`
	Wait     time.Duration `json:"graceful-timeout"`
	CertFile string        `json:"certFile,omitempty"`
	KeyFile  string        `json:"keyFile,omitempty"`

	Simulator SimulatorOptions `json:"simulator"`
	baseoptions.BaseOptions
}

const (
	_defaultAddress = "s7:tcp://127.0.0.1:102"
	_defaultPort    = "32200"
	_defaultWait    = 15 * time.Second
	_defaultCycle   = time.Second
	_defaultListen  = ":102"

	OutputText = "text"
	OutputJSON = "json"
)

func NewDefaultOptions() *Options {
	sc := session.DefaultConfig()
	return &Options{
		Address:            _defaultAddress,
		Timeout:            sc.Timeout,
		PollInterval:       sc.PollInterval,
		DialTimeout:        sc.DialTimeout,
		PollQuantum:        sc.PollQuantum,
		MaxDisconnectPolls: sc.MaxDisconnectPolls,
		Output:             OutputText,
		Cycle:              _defaultCycle,
		MQTT:               broker.NewDefaultOptions(),
		Port:               _defaultPort,
		Wait:               _defaultWait,
		Simulator: SimulatorOptions{
			Listen:    _defaultListen,
			PDULength: s7runtime.DefaultPDULength,
		},
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

// AddFlags binds the connection flags every command shares.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Address, "address", "a", o.Address, "Connection string of the PLC, s7:tcp://host[:port][?rack=&slot=&model=&pdu=&type=]")
	fs.StringVar(&o.Rack, "rack", o.Rack, "Rack of the CPU, overrides the connection string")
	fs.StringVar(&o.Slot, "slot", o.Slot, "Slot of the CPU, overrides the connection string")
	fs.StringVar(&o.Model, "model", o.Model, "CPU family: s7300, s7400, s71200, s71500 or logo")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Upper bound of every PLC operation")
	fs.DurationVar(&o.PollInterval, "poll-interval", o.PollInterval, "Pause between two polls of the connection")
	fs.DurationVar(&o.DialTimeout, "dial-timeout", o.DialTimeout, "Upper bound of the TCP dial")
	fs.DurationVar(&o.PollQuantum, "poll-quantum", o.PollQuantum, "Longest a single send or receive attempt may wait")
	fs.IntVar(&o.MaxDisconnectPolls, "max-disconnect-polls", o.MaxDisconnectPolls, "Polls to wait for the PLC to confirm a disconnect")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format: text or json")
}

func (o *Options) AddWatchFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&o.Cycle, "cycle", o.Cycle, "Period of the cyclic read")
	fs.StringVar(&o.MQTT.Broker, "mqtt-broker", o.MQTT.Broker, "Publish every cycle to this MQTT broker, e.g. tcp://127.0.0.1:1883")
	fs.StringVar(&o.MQTT.Topic, "mqtt-topic", o.MQTT.Topic, "MQTT topic to publish to")
	fs.StringVar(&o.MQTT.ClientID, "mqtt-client-id", o.MQTT.ClientID, "MQTT client id, generated when empty")
	fs.StringVar(&o.MQTT.Username, "mqtt-username", o.MQTT.Username, "MQTT user name")
	fs.StringVar(&o.MQTT.Password, "mqtt-password", o.MQTT.Password, "MQTT password")
}

func (o *Options) AddServeFlags(fs *pflag.FlagSet) {
	// refer to node port assignment https://rancher.com/docs/rancher/v2.x/en/installation/requirements/ports/#commonly-used-ports
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.CertFile, "cert-file", o.CertFile, "TLS certificate, serves HTTPS together with --key-file")
	fs.StringVar(&o.KeyFile, "key-file", o.KeyFile, "TLS private key")
}

func (o *Options) AddSimulatorFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Simulator.Listen, "listen", o.Simulator.Listen, "Address the simulated PLC listens on")
	fs.Uint16Var(&o.Simulator.PDULength, "pdu-length", o.Simulator.PDULength, "Largest PDU the simulated PLC accepts")
	fs.StringVar(&o.Simulator.StateDir, "state-dir", o.Simulator.StateDir, "Directory the simulated memory is loaded from at start and saved to on exit")
}

// ConnectionString merges --rack, --slot and --model into the address.
func (o *Options) ConnectionString() (string, error) {
	c, err := plc.ParseConnectionString(o.Address)
	if err != nil {
		return "", err
	}
	for key, value := range map[string]string{"rack": o.Rack, "slot": o.Slot, "model": o.Model} {
		if len(value) > 0 {
			c.Options.Set(key, value)
		}
	}
	return c.String(), nil
}

func (o *Options) SessionConfig() (session.Config, error) {
	address, err := o.ConnectionString()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Address:            address,
		Timeout:            o.Timeout,
		PollInterval:       o.PollInterval,
		DialTimeout:        o.DialTimeout,
		PollQuantum:        o.PollQuantum,
		MaxDisconnectPolls: o.MaxDisconnectPolls,
	}, nil
}

// NewSession connects nothing yet, the session connects on first use.
func (o *Options) NewSession() (*session.Session, error) {
	sc, err := o.SessionConfig()
	if err != nil {
		return nil, err
	}
	return session.New(sc, nil)
}

// Config also dials the MQTT publisher when a broker is configured.
func (o *Options) Config() (*config.Config, error) {
	s, err := o.NewSession()
	if err != nil {
		return nil, err
	}
	c := &config.Config{
		Session:  s,
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
	}
	if len(o.MQTT.Broker) > 0 {
		p, err := broker.Dial(o.MQTT)
		if err != nil {
			return nil, err
		}
		c.Publisher = p
	}
	return c, nil
}
