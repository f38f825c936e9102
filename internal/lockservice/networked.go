package lockservice

import (
	"bufio"
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"sync"

	"github.com/edmiester777/search-engine/internal/metadata"
	"lukechampine.com/blake3"
)

/*
Wire protocol, one line per message, newline-terminated:

  client -> server: "ACQUIRE <key> <mac>\n"
  server -> client: "OK\n" | "DENIED\n"
  client -> server: "RELEASE <key> <mac>\n"
  server -> client: "OK\n"

mac authenticates the verb+key pair under the shared authentication key
using BLAKE3 in keyed mode, so a network observer without the key cannot
forge acquire/release traffic. The server treats a dropped connection
while a key is held as an implicit release, satisfying the
guaranteed-release-on-crash requirement without a heartbeat protocol.
*/

func macFor(authKey []byte, verb string, key string) string {
	h := blake3.New(32, authKey)
	h.Write([]byte(verb))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// NetworkedClient speaks the LockService wire protocol against a single
// authoritative Server over one persistent connection.
type NetworkedClient struct {
	authKey []byte
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
}

func DialNetworkedClient(ctx context.Context, addr string, authKey []byte) (*NetworkedClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &NetworkedClient{
		authKey: authKey,
		conn:    conn,
		reader:  bufio.NewReader(conn),
	}, nil
}

// Close drops the underlying connection without sending RELEASE for any
// key this client currently holds; the server's accept loop treats the
// resulting EOF as an implicit release of everything held by this
// connection, matching the guaranteed-release-on-crash requirement.
func (c *NetworkedClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *NetworkedClient) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mac := macFor(c.authKey, "ACQUIRE", key)
	if _, err := fmt.Fprintf(c.conn, "ACQUIRE %s %s\n", key, mac); err != nil {
		return nil, err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if line != "OK\n" {
		return nil, fmt.Errorf("lockservice: acquire %q denied", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			releaseMac := macFor(c.authKey, "RELEASE", key)
			_, _ = fmt.Fprintf(c.conn, "RELEASE %s %s\n", key, releaseMac)
			_, _ = c.reader.ReadString('\n')
		})
	}, nil
}

var _ LockService = (*NetworkedClient)(nil)

// Server is the authoritative holder of record for networked deployments:
// one process, reachable by every crawler/indexer host, arbitrates every
// acquire/release over TCP.
type Server struct {
	authKey      []byte
	metadataSink metadata.Sink

	mu      sync.Mutex
	holders map[string]net.Conn
}

func NewServer(authKey []byte, metadataSink metadata.Sink) *Server {
	return &Server{
		authKey:      authKey,
		metadataSink: metadataSink,
		holders:      make(map[string]net.Conn),
	}
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.releaseAllHeldBy(conn)

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		var verb, key, mac string
		if _, scanErr := fmt.Sscanf(line, "%s %s %s", &verb, &key, &mac); scanErr != nil {
			return
		}

		expected := macFor(s.authKey, verb, key)
		if subtle.ConstantTimeCompare([]byte(mac), []byte(expected)) != 1 {
			_, _ = fmt.Fprint(conn, "DENIED\n")
			continue
		}

		switch verb {
		case "ACQUIRE":
			if s.tryAcquire(key, conn) {
				_, _ = fmt.Fprint(conn, "OK\n")
			} else {
				_, _ = fmt.Fprint(conn, "DENIED\n")
			}
		case "RELEASE":
			s.release(key, conn)
			_, _ = fmt.Fprint(conn, "OK\n")
		default:
			_, _ = fmt.Fprint(conn, "DENIED\n")
		}
	}
}

func (s *Server) tryAcquire(key string, conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.holders[key]; held {
		return false
	}
	s.holders[key] = conn
	s.metadataSink.RecordLock(metadata.LockEvent{Key: key, Holder: conn.RemoteAddr().String()})
	return true
}

func (s *Server) release(key string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, ok := s.holders[key]; ok && holder == conn {
		delete(s.holders, key)
	}
}

func (s *Server) releaseAllHeldBy(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, holder := range s.holders {
		if holder == conn {
			delete(s.holders, key)
		}
	}
}
