package options

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"k8s.io/apimachinery/pkg/util/validation/field"
	s7runtime "s7link/pkg/protocol/s7/runtime"
)

type Check func(o *Options) field.ErrorList

func Validate(o *Options, checks ...Check) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	for _, check := range checks {
		if list := check(o); len(list) != 0 {
			errs = append(errs, list.ToAggregate().Errors()...)
		}
	}
	return errs
}

func ValidateConnection(o *Options) field.ErrorList {
	errs := field.ErrorList{}
	if _, err := o.ConnectionString(); err != nil {
		errs = append(errs, field.Invalid(field.NewPath("address"), o.Address, err.Error()))
	}
	if o.Timeout <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("timeout"), o.Timeout.String(), "must be positive"))
	}
	if o.PollInterval <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("pollInterval"), o.PollInterval.String(), "must be positive"))
	}
	if o.MaxDisconnectPolls < 0 {
		errs = append(errs, field.Invalid(field.NewPath("maxDisconnectPolls"), o.MaxDisconnectPolls, "must not be negative"))
	}
	if o.Output != OutputText && o.Output != OutputJSON {
		errs = append(errs, field.NotSupported(field.NewPath("output"), o.Output, []string{OutputText, OutputJSON}))
	}
	errs = append(errs, ValidateTags(o)...)
	return errs
}

func ValidateTags(o *Options) field.ErrorList {
	errs := field.ErrorList{}
	for i, tag := range o.Tags {
		if _, err := s7runtime.ParseAddress(tag.Address); err != nil {
			errs = append(errs, field.Invalid(field.NewPath("tags").Index(i).Child("address"), tag.Address, err.Error()))
		}
	}
	return errs
}

func ValidateWatch(o *Options) field.ErrorList {
	errs := field.ErrorList{}
	if o.Cycle <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("cycle"), o.Cycle.String(), "must be positive"))
	}
	if len(o.MQTT.Broker) > 0 {
		path := field.NewPath("mqtt")
		if u, err := url.Parse(o.MQTT.Broker); err != nil || len(u.Scheme) == 0 || len(u.Host) == 0 {
			errs = append(errs, field.Invalid(path.Child("broker"), o.MQTT.Broker, "must be a URL such as tcp://host:1883"))
		}
		if len(o.MQTT.Topic) == 0 {
			errs = append(errs, field.Required(path.Child("topic"), ""))
		}
		if o.MQTT.QoS > 2 {
			errs = append(errs, field.NotSupported(path.Child("qos"), o.MQTT.QoS, []string{"0", "1", "2"}))
		}
	}
	return errs
}

func ValidateServe(o *Options) field.ErrorList {
	errs := field.ErrorList{}
	if port, err := strconv.Atoi(o.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, field.Invalid(field.NewPath("port"), o.Port, "must be a port number"))
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		errs = append(errs, field.Required(field.NewPath("keyFile"), "certFile and keyFile go together"))
	}
	return errs
}

func ValidateSimulator(o *Options) field.ErrorList {
	errs := field.ErrorList{}
	path := field.NewPath("simulator")
	if _, _, err := net.SplitHostPort(o.Simulator.Listen); err != nil {
		errs = append(errs, field.Invalid(path.Child("listen"), o.Simulator.Listen, err.Error()))
	}
	if o.Simulator.PDULength < s7runtime.MinPDULength || o.Simulator.PDULength > s7runtime.DefaultPDULength {
		errs = append(errs, field.Invalid(path.Child("pduLength"), o.Simulator.PDULength,
			fmt.Sprintf("must be between %d and %d", s7runtime.MinPDULength, s7runtime.DefaultPDULength)))
	}
	errs = append(errs, ValidateTags(o)...)
	return errs
}
