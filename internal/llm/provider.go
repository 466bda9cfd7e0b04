package llm

import (
	"fmt"
	"strings"
)

// Provider selects which installed CLI agent answers a prompt.
type Provider int

const (
	ProviderNone Provider = iota
	ProviderCodex
	ProviderGemini
)

// Providers lists the selectable providers in display order.
var Providers = []Provider{ProviderCodex, ProviderGemini}

func (p Provider) String() string {
	switch p {
	case ProviderCodex:
		return "codex"
	case ProviderGemini:
		return "gemini"
	default:
		return "none"
	}
}

// ParseProvider maps a provider name to a Provider. The empty string and
// "none" yield ProviderNone.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ProviderNone, nil
	case "codex":
		return ProviderCodex, nil
	case "gemini":
		return ProviderGemini, nil
	default:
		return ProviderNone, fmt.Errorf("unknown LLM provider %q (expected codex|gemini)", s)
	}
}

// binEnv is the variable overriding the provider's executable path.
func (p Provider) binEnv() string {
	switch p {
	case ProviderGemini:
		return EnvGeminiBin
	default:
		return EnvCodexBin
	}
}
