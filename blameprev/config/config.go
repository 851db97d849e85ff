// Package config loads repository level defaults from .blameprev.yml.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileName is looked up in the repository root when no explicit path is given.
const FileName = ".blameprev.yml"

const (
	DifferGit     = "git"
	DifferContent = "content"
)

type Config struct {
	GitCommand       string `yaml:"git_command"`
	Differ           string `yaml:"differ"`
	IgnoreWhitespace bool   `yaml:"ignore_whitespace"`
	AttributeRoot    bool   `yaml:"attribute_root"`
	BlameSeed        bool   `yaml:"blame_seed"`
	AllBranches      bool   `yaml:"all_branches"`
	BlobCacheSize    int    `yaml:"blob_cache_size"`
	MaxParallel      int    `yaml:"max_parallel"`
	Retries          int    `yaml:"retries"`
}

func Default() Config {
	return Config{
		GitCommand:    "git",
		Differ:        DifferGit,
		BlobCacheSize: 256,
		Retries:       2,
	}
}

// Load reads the config at loc, or FileName in repoDir when loc is empty. A missing default file
// is not an error, a missing explicit file is.
func Load(repoDir, loc string) (Config, error) {
	explicit := loc != ""
	if !explicit {
		loc = filepath.Join(repoDir, FileName)
	}
	data, err := os.ReadFile(loc)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return Config{}, errors.Wrapf(err, "reading config %v", loc)
	}
	res, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %v", loc)
	}
	return res, nil
}

// Parse decodes yaml on top of Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	res := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&res); err != nil && err != io.EOF {
		return Config{}, err
	}
	if err := res.Validate(); err != nil {
		return Config{}, err
	}
	return res, nil
}

func (s Config) Validate() error {
	if s.Differ != DifferGit && s.Differ != DifferContent {
		return errors.Errorf("differ must be %q or %q, got %q", DifferGit, DifferContent, s.Differ)
	}
	if s.BlobCacheSize < 0 {
		return errors.New("blob_cache_size must not be negative")
	}
	if s.MaxParallel < 0 {
		return errors.New("max_parallel must not be negative")
	}
	if s.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	return nil
}
