package plc

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ConnectionString is <driver>:<transport>://<endpoint>[?options], as in
// s7:tcp://192.168.0.1:102?rack=0&slot=1.
type ConnectionString struct {
	Driver    string
	Transport string
	Endpoint  string
	Options   url.Values
}

func ParseConnectionString(s string) (*ConnectionString, error) {
	i := strings.Index(s, ":")
	if i <= 0 {
		return nil, errors.Wrapf(ErrInvalidConnectionString, "%q has no driver code", s)
	}
	u, err := url.Parse(s[i+1:])
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConnectionString, "%q: %v", s, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(ErrInvalidConnectionString, "%q needs <driver>:<transport>://<endpoint>", s)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, errors.Wrapf(ErrInvalidConnectionString, "%q has a path", s)
	}
	return &ConnectionString{
		Driver:    strings.ToLower(s[:i]),
		Transport: u.Scheme,
		Endpoint:  u.Host,
		Options:   u.Query(),
	}, nil
}

func (c *ConnectionString) String() string {
	s := c.Driver + ":" + c.Transport + "://" + c.Endpoint
	if len(c.Options) > 0 {
		s += "?" + c.Options.Encode()
	}
	return s
}
