package config

import (
	"s7link/pkg/broker"
	"s7link/pkg/session"
)

type Config struct {
	Session   *session.Session
	Publisher *broker.Publisher
	CertFile  string
	KeyFile   string
}
