package generic

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Server runs a gin engine on Port, over TLS when both CertFile and KeyFile
// are set.
type Server struct {
	Router   *gin.Engine
	Port     string
	CertFile string
	KeyFile  string

	srv *http.Server
}

// Start binds the port and serves in the background.
func (s *Server) Start() error {
	srv := &http.Server{Handler: s.Router}
	tlsEnabled := len(s.CertFile) != 0 && len(s.KeyFile) != 0
	if tlsEnabled {
		x509KeyPair, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		if err != nil {
			return errors.Wrap(err, "load TLS key pair")
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{x509KeyPair},
		}
	}
	l, err := net.Listen("tcp", net.JoinHostPort("", s.Port))
	if err != nil {
		return err
	}
	s.srv = srv

	go func() {
		var err error
		if tlsEnabled {
			err = srv.ServeTLS(l, "", "")
		} else {
			err = srv.Serve(l)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "Failed to serve HTTP", "port", s.Port)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.srv.SetKeepAlivesEnabled(false)
	return s.srv.Shutdown(ctx)
}
