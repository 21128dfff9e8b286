package sshutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Session is one SSH connection with an SFTP channel.
// It is not safe for concurrent use.
type Session struct {
	conn   *ssh.Client
	sftp   *sftp.Client
	logger *slog.Logger
}

// ReadFile reads the contents of a file from the remote system.
// A missing file yields an error matching os.ErrNotExist.
func (s *Session) ReadFile(path string) ([]byte, error) {
	file, err := s.sftp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}

	s.logger.Debug("file read",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)

	return data, nil
}

// WriteFile replaces path with data. The content goes to a temporary file in
// the same directory first and is renamed over path, so readers never see a
// partial file.
func (s *Session) WriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"

	file, err := s.sftp.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("opening file %s for write: %w", tmp, err)
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = s.sftp.Remove(tmp)
		return fmt.Errorf("writing to file %s: %w", tmp, err)
	}
	if err := file.Close(); err != nil {
		_ = s.sftp.Remove(tmp)
		return fmt.Errorf("closing file %s: %w", tmp, err)
	}

	if err := s.sftp.Chmod(tmp, perm); err != nil {
		s.logger.Warn("failed to set file permissions",
			slog.String("path", tmp),
			slog.String("error", err.Error()),
		)
	}

	if err := s.sftp.PosixRename(tmp, path); err != nil {
		_ = s.sftp.Remove(tmp)
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}

	s.logger.Debug("file written",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)

	return nil
}

// Stat returns file info for a path on the remote system.
func (s *Session) Stat(path string) (os.FileInfo, error) {
	info, err := s.sftp.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return info, nil
}

// Run executes command on the remote host and fails on a non-zero exit status.
func (s *Session) Run(ctx context.Context, command string) error {
	session, err := s.conn.NewSession()
	if err != nil {
		return fmt.Errorf("%w: creating SSH session: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = session.Close() }()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output

	s.logger.Debug("executing command", slog.String("command", command))

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("command failed with exit code %d: %s", exitErr.ExitStatus(), strings.TrimSpace(output.String()))
		}
		return fmt.Errorf("running command: %w", err)
	}
}

// Close ends the SFTP channel and the SSH connection.
func (s *Session) Close() error {
	return errors.Join(s.sftp.Close(), s.conn.Close())
}
