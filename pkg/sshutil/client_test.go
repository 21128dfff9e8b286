package sshutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/dyndns/pkg/sshutil/sshtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, srv *sshtest.Server, password string, knownHosts string) *Client {
	t.Helper()
	host, port := srv.HostPort()
	c, err := NewClient(&Config{
		Host:           host,
		Port:           port,
		User:           "dyndns",
		Password:       password,
		KnownHostsFile: knownHosts,
		Timeout:        5 * time.Second,
	}, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"nil config", nil},
		{"invalid config", &Config{Host: "h"}},
		{"missing key file", &Config{Host: "h", User: "u", KeyFile: filepath.Join(t.TempDir(), "nope")}},
		{"garbage key data", &Config{Host: "h", User: "u", KeyData: "not a key"}},
		{"missing known_hosts", &Config{Host: "h", User: "u", Password: "p", KnownHostsFile: filepath.Join(t.TempDir(), "nope")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.config, WithLogger(testLogger())); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSession_Files(t *testing.T) {
	srv := sshtest.NewServer(t, "dyndns", "secret")
	client := newTestClient(t, srv, "secret", srv.WriteKnownHosts(t))

	sess, err := client.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sess.Close()

	path := filepath.Join(t.TempDir(), "dyndns.conf")

	if _, err := sess.ReadFile(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile(missing) error = %v, want os.ErrNotExist", err)
	}

	content := []byte("address=/home.example.com/192.0.2.1\n")
	if err := sess.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := sess.ReadFile(path)
	if err != nil || string(got) != string(content) {
		t.Errorf("ReadFile() = %q, %v", got, err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	info, err := sess.Stat(filepath.Dir(path))
	if err != nil || !info.IsDir() {
		t.Errorf("Stat(dir) = %v, %v", info, err)
	}
}

func TestSession_Run(t *testing.T) {
	srv := sshtest.NewServer(t, "dyndns", "secret")
	client := newTestClient(t, srv, "secret", "")

	sess, err := client.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sess.Close()

	if err := sess.Run(context.Background(), "systemctl reload dnsmasq"); err != nil {
		t.Errorf("Run() error = %v", err)
	}

	srv.SetExitStatus(3)
	err = sess.Run(context.Background(), "systemctl reload dnsmasq")
	if err == nil || !strings.Contains(err.Error(), "exit code 3") {
		t.Errorf("Run() error = %v, want exit code 3", err)
	}

	if got := srv.Commands(); len(got) != 2 || got[0] != "systemctl reload dnsmasq" {
		t.Errorf("Commands() = %v", got)
	}
}

func TestClient_Open_Errors(t *testing.T) {
	srv := sshtest.NewServer(t, "dyndns", "secret")
	other := sshtest.NewServer(t, "dyndns", "secret")

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closedPort := closed.Addr().(*net.TCPAddr).Port
	_ = closed.Close()

	tests := []struct {
		name    string
		client  func() *Client
		wantErr error
	}{
		{
			name:    "wrong password",
			client:  func() *Client { return newTestClient(t, srv, "wrong", "") },
			wantErr: ErrAuthenticationFailed,
		},
		{
			name:    "unknown host key",
			client:  func() *Client { return newTestClient(t, srv, "secret", other.WriteKnownHosts(t)) },
			wantErr: ErrHostKeyMismatch,
		},
		{
			name: "connection refused",
			client: func() *Client {
				c, err := NewClient(&Config{Host: "127.0.0.1", Port: closedPort, User: "u", Password: "p"}, WithLogger(testLogger()))
				if err != nil {
					t.Fatal(err)
				}
				return c
			},
			wantErr: ErrConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := tt.client().Open(context.Background())
			if err == nil {
				_ = sess.Close()
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
