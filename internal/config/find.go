package config

import (
	"os"
	"path/filepath"

	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// SuiteFileNames are the suite file names looked up by FindSuite, in order
// of preference within one directory.
var SuiteFileNames = []string{"conform.yaml", "conform.yml", "conform.toml", "conform.json"}

// FindSuite walks up from the current working directory until it finds a
// suite file.
func FindSuite() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", conformerrors.Wrap(err, "failed to get working directory")
	}
	return FindSuiteFrom(cwd)
}

// FindSuiteFrom walks up from the given directory until it finds a suite
// file.
func FindSuiteFrom(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", conformerrors.Wrap(err, "failed to resolve directory")
	}

	for {
		for _, name := range SuiteFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", conformerrors.NotFound("suite file", "conform.{yaml,yml,toml,json} in "+startDir+" or any parent")
		}
		dir = parent
	}
}
