package config

import (
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/rest"

	"github.com/nosdesk/collab-core/third_party/cache"
	"github.com/nosdesk/collab-core/third_party/database"
	"github.com/nosdesk/collab-core/third_party/search"
)

// Config is the process-wide configuration the core loads at start-up via
// conf.MustLoad. Secrets are sourced from the environment, never
// committed to etc/core.yaml.
type Config struct {
	rest.RestConf
	Database    database.PostgresConfig
	Redis       cache.RedisConfig
	MeiliSearch search.MeiliSearchConfig
	Auth        AuthConfig
}

// AuthConfig governs the Credential Store and Session Authority: token
// lifetimes, signing secret, and the process-wide TOTP encryption key.
type AuthConfig struct {
	JWTSecret            string        `json:",env=JWT_SECRET"`
	AccessTokenTTL       time.Duration `json:",default=24h,env=JWT_EXPIRY_HOURS"`
	RefreshTokenTTL      time.Duration `json:",default=720h"`
	SessionInactivityTTL time.Duration `json:",default=30m,env=SESSION_TIMEOUT_MINUTES"`
	MFAEncryptionKey     string        `json:",env=MFA_ENCRYPTION_KEY"`
}

// minJWTSecretBytes is the entropy floor the core's JWT_SECRET must meet;
// anything shorter is rejected at boot, never at request time.
const minJWTSecretBytes = 32

// Validate runs the boot-time checks main performs before starting the
// server: a too-short or missing JWT_SECRET refuses to start. The
// MFA_ENCRYPTION_KEY format (64 hex chars) is validated separately by
// credential.ParseMasterKey during ServiceContext construction, which
// runs immediately after this.
func (c Config) Validate() error {
	if len(c.Auth.JWTSecret) < minJWTSecretBytes {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes, got %d", minJWTSecretBytes, len(c.Auth.JWTSecret))
	}
	return nil
}
