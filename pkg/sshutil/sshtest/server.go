// Package sshtest runs an in-process SSH server with SFTP and exec support
// for tests. Files are served from the local filesystem, so tests pass
// absolute paths under t.TempDir().
package sshtest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Server is a running test SSH server.
type Server struct {
	// Addr is the listener address in host:port form.
	Addr string

	user     string
	password string
	hostKey  ssh.Signer
	listener net.Listener

	mu         sync.Mutex
	commands   []string
	exitStatus uint32
	conns      map[net.Conn]struct{}
	wg         sync.WaitGroup
}

// NewServer starts a server that accepts user/password logins.
// It is shut down by t.Cleanup.
func NewServer(t *testing.T, user, password string) *Server {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	hostKey, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("creating host key signer: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	s := &Server{
		Addr:     listener.Addr().String(),
		user:     user,
		password: password,
		hostKey:  hostKey,
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(func() {
		_ = listener.Close()
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})

	return s
}

// HostPort splits Addr for use in a client config.
func (s *Server) HostPort() (string, int) {
	tcp := s.listener.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

// WriteKnownHosts writes a known_hosts file trusting this server and returns its path.
func (s *Server) WriteKnownHosts(t *testing.T) string {
	t.Helper()
	line := knownhosts.Line([]string{s.Addr}, s.hostKey.PublicKey())
	path := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("writing known_hosts: %v", err)
	}
	return path
}

// SetExitStatus sets the status returned by subsequent exec requests.
func (s *Server) SetExitStatus(status uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exitStatus = status
}

// Commands returns the commands executed so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	config := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if meta.User() == s.user && bytes.Equal(password, []byte(s.password)) {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(s.hostKey)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn, config)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn, config *ssh.ServerConfig) {
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	sconn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer func() { _ = sconn.Close() }()
	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveSession(channel, requests)
		}()
	}
	wg.Wait()
}

func (s *Server) serveSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = channel.Close() }()

	for req := range requests {
		switch req.Type {
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
			_ = server.Close()
			return

		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			status := s.exitStatus
			s.mu.Unlock()

			if status != 0 {
				_, _ = fmt.Fprintf(channel.Stderr(), "exit %d\n", status)
			}
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			return

		default:
			_ = req.Reply(false, nil)
		}
	}
}
