package web

import (
	"context"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"s7link/cmd/s7link/config"
	"s7link/pkg/generic"
)

type Server struct {
	*generic.Server
	*config.Config
}

func NewServer(router *gin.Engine, port string, config *config.Config) (*Server, error) {
	server := &Server{
		Server: &generic.Server{
			Router:   router,
			Port:     port,
			CertFile: config.CertFile,
			KeyFile:  config.KeyFile,
		},
		Config: config,
	}

	server.InstallHandlers()

	return server, nil
}

func (s *Server) InstallHandlers() {
	v1 := s.Router.Group("/api/v1")
	InstallHandler(v1, s.Config.Session)
}

// Serve starts listening in the background. The returned function shuts the
// server down and then closes the PLC session.
func (s *Server) Serve() (func(ctx context.Context), error) {
	if err := s.Start(); err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		if err := s.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to stop HTTP server")
		}
		if err := s.Config.Session.Close(ctx); err != nil {
			klog.ErrorS(err, "Failed to close PLC session")
		}
	}, nil
}
