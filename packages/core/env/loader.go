package env

import (
	"github.com/abdul-hamid-achik/reqspec/packages/core/config"
)

// NewResolverFromConfig seeds a resolver from cfg. Values from cfg.EnvFile are
// loaded first so that cfg.Variables can override them.
func NewResolverFromConfig(cfg *config.Config) (*Resolver, error) {
	r := NewResolver()
	if cfg == nil {
		return r, nil
	}

	if cfg.EnvFile != "" {
		vars, err := LoadDotEnv(cfg.EnvFile)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			r.SetVariable(k, v)
		}
	}

	r.SetVariables(cfg.Variables)
	return r, nil
}
