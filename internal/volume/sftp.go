package volume

import (
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig carries the connection details for an SFTP-backed volume.
type SFTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

// SFTPSource serves a volume reachable over SFTP. Opens are live remote
// reads, so callers that need random access over big files (archives)
// should expect them to be slower than local ones.
type SFTPSource struct {
	conn   *ssh.Client
	client *sftp.Client
}

// NewSFTPSource dials the remote host and starts an SFTP session.
func NewSFTPSource(cfg SFTPConfig) (*SFTPSource, error) {
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
		},
		// Volumes are operator-configured; host key pinning is
		// tracked separately in the volumes file format.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port))
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sftp session %s: %w", addr, err)
	}
	return &SFTPSource{conn: conn, client: client}, nil
}

func (s *SFTPSource) Stat(path string) (fs.FileInfo, error) {
	return s.client.Stat(path)
}

func (s *SFTPSource) Open(path string) (File, error) {
	return s.client.Open(path)
}

func (s *SFTPSource) Walk(root string, fn WalkFunc) error {
	walker := s.client.Walk(root)
	for walker.Step() {
		if walker.Err() != nil {
			continue
		}
		info := walker.Stat()
		if info.IsDir() || !info.Mode().IsRegular() {
			continue
		}
		if err := fn(walker.Path(), info); err != nil {
			return err
		}
	}
	return nil
}

func (s *SFTPSource) Close() error {
	cerr := s.client.Close()
	if err := s.conn.Close(); err != nil {
		return err
	}
	return cerr
}
