package broker

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"s7link/pkg/plc"
	"s7link/pkg/runtime"
	"s7link/pkg/utils/uuidutil"
)

const (
	_defaultTimeout    = 1 * time.Second
	_disconnectQuiesce = 250
	_clientIDPrefix    = "s7link-"
)

var ErrPublish = errors.New("failed to publish")

type Options struct {
	Broker   string        `json:"broker"`
	Topic    string        `json:"topic"`
	ClientID string        `json:"clientId"`
	Username string        `json:"username,omitempty"`
	Password string        `json:"password,omitempty"`
	QoS      byte          `json:"qos"`
	Timeout  time.Duration `json:"timeout"`
}

func NewDefaultOptions() Options {
	return Options{
		Topic:   "data/s7link/v1",
		QoS:     1,
		Timeout: _defaultTimeout,
	}
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client  client
	topic   string
	qos     byte
	timeout time.Duration
}

// Dial connects to the MQTT broker named in o.
func Dial(o Options) (*Publisher, error) {
	if len(o.ClientID) == 0 {
		o.ClientID = uuidutil.ClientID(_clientIDPrefix)
	}
	if o.Timeout <= 0 {
		o.Timeout = _defaultTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(o.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			klog.V(2).InfoS("Lost MQTT connection", "broker", o.Broker, "error", err)
		})
	if len(o.Username) > 0 {
		opts.SetUsername(o.Username).SetPassword(o.Password)
	}
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(o.Timeout) {
		return nil, errors.Errorf("timed out connecting to MQTT broker %s", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect to MQTT broker %s", o.Broker)
	}
	klog.V(2).InfoS("Connected to MQTT broker", "broker", o.Broker, "clientId", o.ClientID)
	return NewPublisher(c, o.Topic, o.QoS, o.Timeout), nil
}

func NewPublisher(c client, topic string, qos byte, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = _defaultTimeout
	}
	return &Publisher{client: c, topic: topic, qos: qos, timeout: timeout}
}

// Publish sends the items of r that were read without error, sampled at t.
// A response with no such item publishes nothing.
func (p *Publisher) Publish(r *plc.Response, t time.Time) error {
	data, ok := PublishData(r, t)
	if !ok {
		return nil
	}
	marshal, err := json.Marshal(data)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, p.qos, false, marshal)
	if !token.WaitTimeout(p.timeout) {
		return errors.Wrapf(ErrPublish, "timed out after %s", p.timeout)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(ErrPublish, "%v", err)
	}
	klog.V(5).InfoS("Succeed to publish MQTT", "topic", p.topic, "points", len(data.Payload.Data[0].Values))
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(_disconnectQuiesce)
}

// PublishData converts the successful items of r to the published shape.
func PublishData(r *plc.Response, t time.Time) (runtime.PublishData, bool) {
	if r == nil {
		return runtime.PublishData{}, false
	}
	pds := make([]runtime.PointData, 0, len(r.Items))
	for _, item := range r.Items {
		if item.Err != nil || item.Value == nil {
			continue
		}
		pds = append(pds, runtime.PointData{
			DataPointId: item.Name,
			Value:       item.Value.Interface(),
		})
	}
	if len(pds) == 0 {
		return runtime.PublishData{}, false
	}
	return runtime.NewPublishData(t, pds), true
}
