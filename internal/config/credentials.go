package config

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"shiftcast/internal/common"
	"shiftcast/pkg/errors"
	"shiftcast/pkg/models"
)

// KeyringService is the service name passwords are stored under.
const KeyringService = "shiftcast"

// errNotProvided marks a provider that had nothing to offer. Chain skips it.
var errNotProvided = stderrors.New("credentials not provided")

// Credentials are the secrets needed to open a warehouse session.
type Credentials struct {
	Account  string `json:"account"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) complete() bool {
	return c.Account != "" && c.Username != "" && c.Password != ""
}

// CredentialProvider supplies some or all connection secrets.
type CredentialProvider interface {
	Name() string
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticProvider returns fixed values, normally the ones from the config
// file and environment.
type StaticProvider struct {
	Creds Credentials
}

func (p StaticProvider) Name() string { return "config" }

func (p StaticProvider) Credentials(ctx context.Context) (Credentials, error) {
	if p.Creds == (Credentials{}) {
		return Credentials{}, errNotProvided
	}
	return p.Creds, nil
}

// AuthFileProvider reads a JSON file with username, password and account.
// A missing file is not an error.
type AuthFileProvider struct {
	Path string
}

func (p AuthFileProvider) Name() string { return "auth_file" }

func (p AuthFileProvider) Credentials(ctx context.Context) (Credentials, error) {
	if p.Path == "" {
		return Credentials{}, errNotProvided
	}
	path, err := common.CleanPath(p.Path)
	if err != nil {
		return Credentials{}, errors.ConfigError(fmt.Sprintf("Invalid auth file path: %v", err), "credentials.auth_file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, errNotProvided
		}
		return Credentials{}, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read auth file").
			WithContext("path", path)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Auth file is not valid JSON").
			WithContext("path", path).
			WithSuggestions(`Expected {"username": "...", "password": "...", "account": "..."}`)
	}
	return creds, nil
}

// KeyringProvider looks up the password for User in the OS keyring.
type KeyringProvider struct {
	Service string
	User    string
}

func (p KeyringProvider) Name() string { return "keyring" }

func (p KeyringProvider) service() string {
	if p.Service == "" {
		return KeyringService
	}
	return p.Service
}

func (p KeyringProvider) Credentials(ctx context.Context) (Credentials, error) {
	if p.User == "" {
		return Credentials{}, errNotProvided
	}
	password, err := keyring.Get(p.service(), p.User)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, errNotProvided
		}
		return Credentials{}, errors.Wrap(err, errors.ErrCodeCredentialMissing, "Failed to read password from keyring")
	}
	return Credentials{Username: p.User, Password: password}, nil
}

// StorePassword saves the password for user in the OS keyring.
func (p KeyringProvider) StorePassword(user, password string) error {
	if err := keyring.Set(p.service(), user, password); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialMissing, "Failed to store password in keyring")
	}
	return nil
}

// Chain asks each provider in order and keeps the first non-empty value of
// every field.
type Chain []CredentialProvider

func (c Chain) Credentials(ctx context.Context) (Credentials, error) {
	var merged Credentials
	for _, p := range c {
		if merged.complete() {
			break
		}
		creds, err := p.Credentials(ctx)
		if stderrors.Is(err, errNotProvided) {
			continue
		}
		if err != nil {
			return Credentials{}, err
		}
		if merged.Account == "" {
			merged.Account = creds.Account
		}
		if merged.Username == "" {
			merged.Username = creds.Username
		}
		if merged.Password == "" {
			merged.Password = creds.Password
		}
	}

	if !merged.complete() {
		return merged, errors.New(errors.ErrCodeCredentialMissing, "Snowflake credentials are incomplete").
			WithContext("missing", missingFields(merged)).
			WithSuggestions(
				"Set snowflake.account, snowflake.username and snowflake.password in the config",
				"Or provide "+DefaultAuthFile,
				"Or set SHIFTCAST_SNOWFLAKE_PASSWORD",
			)
	}
	return merged, nil
}

func missingFields(c Credentials) []string {
	var missing []string
	if c.Account == "" {
		missing = append(missing, "account")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}

// ProvidersFor builds the lookup order for cfg: config values, then the
// auth file, then the keyring when enabled.
func ProvidersFor(cfg *models.Config) Chain {
	chain := Chain{
		StaticProvider{Creds: Credentials{
			Account:  cfg.Snowflake.Account,
			Username: cfg.Snowflake.Username,
			Password: cfg.Snowflake.Password,
		}},
		AuthFileProvider{Path: cfg.Credentials.AuthFile},
	}
	if cfg.Credentials.UseKeyring {
		chain = append(chain, &lazyKeyring{cfg: cfg})
	}
	return chain
}

// lazyKeyring resolves the username at lookup time so a username found in
// the auth file can still be used as the keyring key.
type lazyKeyring struct {
	cfg  *models.Config
	user string
}

func (l *lazyKeyring) Name() string { return "keyring" }

func (l *lazyKeyring) Credentials(ctx context.Context) (Credentials, error) {
	user := l.cfg.Snowflake.Username
	if user == "" {
		user = l.user
	}
	return KeyringProvider{User: user}.Credentials(ctx)
}

// ResolveCredentials fills the Snowflake account, username and password on
// cfg from the configured providers.
func ResolveCredentials(ctx context.Context, cfg *models.Config) error {
	chain := ProvidersFor(cfg)

	// The keyring is keyed by username, which may only be known from the
	// auth file.
	for _, p := range chain {
		if lk, ok := p.(*lazyKeyring); ok && cfg.Snowflake.Username == "" {
			if creds, err := (AuthFileProvider{Path: cfg.Credentials.AuthFile}).Credentials(ctx); err == nil {
				lk.user = creds.Username
			}
		}
	}

	creds, err := chain.Credentials(ctx)
	if err != nil {
		return err
	}
	cfg.Snowflake.Account = creds.Account
	cfg.Snowflake.Username = creds.Username
	cfg.Snowflake.Password = creds.Password
	return nil
}
