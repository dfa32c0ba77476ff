package settings

import "strings"

// Accessor reads credentials and model preferences by provider id
type Accessor interface {
	Credential(providerID string) (string, bool)
	PreferredModel(providerID string) (string, bool)
}

// EnvAccessor serves values loaded from the environment
type EnvAccessor struct {
	credentials map[string]string
	models      map[string]string
}

// NewEnvAccessor copies the given maps; blank values are dropped
func NewEnvAccessor(credentials, models map[string]string) *EnvAccessor {
	return &EnvAccessor{
		credentials: nonBlank(credentials),
		models:      nonBlank(models),
	}
}

func (e *EnvAccessor) Credential(providerID string) (string, bool) {
	v, ok := e.credentials[providerID]
	return v, ok
}

func (e *EnvAccessor) PreferredModel(providerID string) (string, bool) {
	v, ok := e.models[providerID]
	return v, ok
}

func nonBlank(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Chain consults accessors in order and returns the first non-blank value
type Chain []Accessor

func (c Chain) Credential(providerID string) (string, bool) {
	for _, a := range c {
		if a == nil {
			continue
		}
		if v, ok := a.Credential(providerID); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

func (c Chain) PreferredModel(providerID string) (string, bool) {
	for _, a := range c {
		if a == nil {
			continue
		}
		if v, ok := a.PreferredModel(providerID); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
