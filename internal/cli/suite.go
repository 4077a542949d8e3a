package cli

import (
	"os"
	"slices"

	"github.com/AndreyAkinshin/conform/internal/config"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// loadSuite reads the suite file at path, or the one found from the working
// directory up when path is empty. Without a suite file, an index given on
// the command line makes a suite of its own.
func loadSuite(path, index string) (*config.Suite, []string, error) {
	if path == "" {
		found, err := config.FindSuite()
		switch {
		case err == nil:
			path = found
		case conformerrors.KindOf(err) != conformerrors.KindNotFound:
			return nil, nil, err
		case index == "":
			return nil, nil, conformerrors.Config("no suite file found; use --suite or --index")
		default:
			wd, err := os.Getwd()
			if err != nil {
				return nil, nil, conformerrors.Wrap(err, "failed to get working directory")
			}
			return config.NewSuite(index, wd), nil, nil
		}
	}
	return config.LoadAndValidate(path)
}

// revalidate checks s again after command-line overrides and returns the
// warnings not already in seen.
func revalidate(s *config.Suite, seen []string) ([]string, error) {
	warnings, err := config.Validate(s)
	if err != nil {
		return seen, conformerrors.WrapConfig(err, "invalid configuration")
	}
	for _, w := range warnings {
		if !slices.Contains(seen, w) {
			seen = append(seen, w)
		}
	}
	return seen, nil
}
