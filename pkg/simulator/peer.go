package simulator

import (
	"context"
	"io"
	"net"

	"k8s.io/klog/v2"
	"s7link/pkg/protocol/s7"
)

type peer struct {
	device *Device
	reader s7.FrameReader
	done   bool
}

func (p *peer) Receive(b []byte) ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}
	p.reader.Write(b)
	var out []byte
	for {
		frame, err := p.reader.Next()
		if err != nil {
			klog.V(2).InfoS("Failed to read frame, dropping client", "error", err)
			p.done = true
			return out, io.EOF
		}
		if frame == nil {
			return out, nil
		}
		reply, closing := p.device.handle(frame)
		out = append(out, reply...)
		if closing {
			p.done = true
			return out, io.EOF
		}
	}
}

// Serve answers S7 clients accepted on l until ctx is done.
func (d *Device) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	klog.InfoS("Simulated S7 device listening", "address", l.Addr().String())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go d.serveConn(ctx, conn)
	}
}

func (d *Device) serveConn(ctx context.Context, conn net.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	klog.V(2).InfoS("Accepted client", "remote", conn.RemoteAddr().String())
	p := d.Peer()
	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		out, perr := p.Receive(buf[:n])
		if len(out) > 0 {
			if _, err := conn.Write(out); err != nil {
				return
			}
		}
		if perr != nil {
			return
		}
	}
}
