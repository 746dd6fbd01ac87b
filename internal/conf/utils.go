// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/birdnet-listener/internal/errors"
)

const appDirName = "birdnet-listener"

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If one of them already holds a config.yaml it is returned alone.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", appDirName),
			filepath.Join("/etc", appDirName),
			exeDir,
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// ResolveRepoDir returns the git work tree for the auto-commit task:
// the configured directory, or the directory holding the store file.
func (s *Settings) ResolveRepoDir() string {
	if s.AutoCommit.RepoDir != "" {
		return s.AutoCommit.RepoDir
	}
	return filepath.Dir(s.Output.CSV.Path)
}
