package taxonomy

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// EnvAPIKey is checked before any provider-specific variable.
const EnvAPIKey = "BOOKMERGE_API_KEY"

var providerKeys = map[string]string{
	ProviderDeepSeek: "DEEPSEEK_API_KEY",
	ProviderOpenAI:   "OPENAI_API_KEY",
	ProviderGemini:   "GEMINI_API_KEY",
}

// APIKey resolves the oracle secret for provider from the environment.
// Ollama needs none and gets "".
func APIKey(provider string, getenv func(string) string) string {
	if provider == ProviderOllama {
		return ""
	}
	if v := getenv(EnvAPIKey); v != "" {
		return v
	}
	if name, ok := providerKeys[provider]; ok {
		return getenv(name)
	}
	return ""
}

// LoadEnv loads a .env file into the process environment without
// overriding variables that are already set. An empty path means ".env" in
// the working directory, which may be absent; an explicit path must exist.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
