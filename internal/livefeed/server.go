package livefeed

import (
	"bufio"
	"context"
	"errors"
	"net"
)

// Server is the TCP variant of the feed, handy with nc.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run accepts clients until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Hub.log.Info().Str("addr", ln.Addr().String()).Msg("tcp feed listening")
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}

		s.Hub.Add(conn)

		go func(c net.Conn) {
			defer s.Hub.Remove(c)
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}
