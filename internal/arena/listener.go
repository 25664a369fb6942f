package arena

import (
	"context"
	"errors"
	"log"
	"net"

	"github.com/playduel/backend/internal/wire"
)

// Serve accepts TCP connections until the context is cancelled, starting
// one session per connection. The listener is closed on cancellation,
// which unblocks Accept.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("[ARENA] TCP listener on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go NewSession(h, wire.NewTCPConn(conn)).Run()
	}
}
