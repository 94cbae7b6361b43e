package session

import "github.com/matheus3301/chatline/internal/config"

const DefaultProfileName = "main"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (-profile flag)
// 2. config.toml default_profile
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultProfileName
}

// LoadProfile resolves the active profile and reads its settings.
func LoadProfile(flagOverride string) (string, config.Profile, error) {
	name := Resolve(flagOverride)
	if err := ValidateName(name); err != nil {
		return "", config.Profile{}, err
	}
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		return "", config.Profile{}, err
	}
	p, err := cfg.Profile(name)
	return name, p, err
}
