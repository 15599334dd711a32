package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/log"
)

const defaultSSHPort = 22

// SSHConfig holds what is needed to open a connection to one host.
type SSHConfig struct {
	Alias          string
	Hostname       string
	User           string
	Port           int
	KeyPath        string
	KnownHostsPath string
	Timeout        time.Duration
}

// SSHConfigFromHost derives connection settings from a configured host.
func SSHConfigFromHost(h *host.Host) SSHConfig {
	return SSHConfig{
		Alias:          h.Alias,
		Hostname:       h.Hostname,
		User:           h.RemoteUser,
		Port:           h.Port,
		KeyPath:        h.IdentityFile,
		KnownHostsPath: h.Config.String("ssh_known_hosts", "~/.ssh/known_hosts"),
		Timeout:        10 * time.Second,
	}
}

// SSHRunner implements the Runner interface using SSH.
type SSHRunner struct {
	alias  string
	client *ssh.Client
}

// NewSSHRunner dials the host and authenticates with the identity file and,
// when available, the running ssh-agent.
func NewSSHRunner(cfg SSHConfig) (*SSHRunner, error) {
	auth, err := authMethods(cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := hostKeyCallback(cfg.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	user := cfg.User
	if user == "" {
		user = os.Getenv("USER")
	}
	port := cfg.Port
	if port == 0 {
		port = defaultSSHPort
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.Hostname, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}

	return &SSHRunner{alias: cfg.Alias, client: client}, nil
}

func authMethods(keyPath string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if keyPath != "" {
		key, err := os.ReadFile(expandHome(keyPath))
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			log.L().Debug("ssh-agent unavailable", "error", err)
		}
	}
	if len(methods) == 0 {
		return nil, errors.New("no SSH credentials: set identity_file or run an ssh-agent")
	}
	return methods, nil
}

func hostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := expandHome(knownHostsPath)
	if _, err := os.Stat(path); err != nil {
		log.L().Warn("known_hosts not found, host keys will not be verified", "path", path)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load known_hosts: %w", err)
	}
	return cb, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Run executes a command on the remote host.
func (r *SSHRunner) Run(ctx context.Context, cmd string, opts ...Option) (string, error) {
	o := buildOptions(opts)
	ctx, cancel := o.context(ctx)
	defer cancel()

	session, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	log.L().Debug("Running over SSH", "host", r.alias, "command", cmd)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if o.Stream != nil {
		out = io.MultiWriter(&buf, o.Stream)
	}
	session.Stdout = out
	session.Stderr = out

	done := make(chan error, 1)
	go func() {
		done <- session.Run(o.expand(cmd))
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		err = ctx.Err()
	}

	output := o.redact(buf.String())
	if err != nil {
		runErr := &RunError{Host: r.alias, Command: cmd, Output: output, ExitCode: -1, Err: err}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			runErr.ExitCode = exitErr.ExitStatus()
		}
		return trimOutput(output), runErr
	}
	return trimOutput(output), nil
}

// Close closes the underlying connection.
func (r *SSHRunner) Close() error {
	return r.client.Close()
}
