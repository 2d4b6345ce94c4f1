// Package config handles application configuration loading and validation.
//
// Configuration is loaded from an optional config.yml, overlaid with
// environment variables (a .env file is honoured when present) and validated
// using struct tags. Load returns an explicit *AppConfig that callers pass to
// constructors; there is no package-level configuration state.
//
// Credentials are never read from YAML. RequireCredentials reports a
// *MissingCredentialError naming the first absent key for an upstream.
package config
