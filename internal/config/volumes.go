package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"asset-catalog/internal/logging"
)

// VolumeConfig is one [[volumes]] table in the volumes file.
type VolumeConfig struct {
	Label     string `toml:"label"`
	Type      string `toml:"type"`
	MountPath string `toml:"mount_path"`
	ReadOnly  bool   `toml:"read_only"`
	Disabled  bool   `toml:"disabled"`

	// SFTP connection details, required when type = "sftp".
	Host        string        `toml:"host"`
	Port        int           `toml:"port"`
	User        string        `toml:"user"`
	Password    string        `toml:"password"`
	DialTimeout time.Duration `toml:"dial_timeout"`
}

type volumesFile struct {
	Volumes []VolumeConfig `toml:"volumes"`
}

// LoadVolumesFile parses the TOML volumes file. A missing file is not an
// error; the service starts with zero volumes and they can be added later.
func LoadVolumesFile(path string) ([]VolumeConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.Warn("Volumes file %s not found, starting with no volumes", path)
		return nil, nil
	}

	var f volumesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse volumes file %s: %w", path, err)
	}

	seen := map[string]bool{}
	for i := range f.Volumes {
		v := &f.Volumes[i]
		if v.Label == "" {
			return nil, fmt.Errorf("volumes file %s: volume %d has no label", path, i)
		}
		if seen[v.Label] {
			return nil, fmt.Errorf("volumes file %s: duplicate volume label %q", path, v.Label)
		}
		seen[v.Label] = true
		if v.MountPath == "" {
			return nil, fmt.Errorf("volumes file %s: volume %q has no mount_path", path, v.Label)
		}
		switch v.Type {
		case "", "local":
			v.Type = "local"
		case "sftp":
			if v.Host == "" || v.User == "" {
				return nil, fmt.Errorf("volumes file %s: sftp volume %q needs host and user", path, v.Label)
			}
		default:
			return nil, fmt.Errorf("volumes file %s: volume %q has unknown type %q", path, v.Label, v.Type)
		}
	}
	return f.Volumes, nil
}
