package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// APIKey resolves the credential for providerName per §6.5:
// ~/.secrets/<PROVIDER>_API_KEY, trimmed. Grounded on store.DefaultDBPath's
// same env-override-or-home-dir-file shape, generalized to read a file
// instead of just returning its path since a credential has no reason
// to be written back.
func APIKey(providerName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}

	name := strings.ToUpper(providerName) + "_API_KEY"
	path := filepath.Join(home, ".secrets", name)

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read credential %s", path)
	}

	return strings.TrimSpace(string(raw)), nil
}
