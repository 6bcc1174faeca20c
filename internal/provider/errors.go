package provider

import "github.com/pkg/errors"

func unsupportedProviderError(name string) error {
	return errors.Errorf("unsupported provider: %s", name)
}
