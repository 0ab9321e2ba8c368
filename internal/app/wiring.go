package app

import (
	"strings"

	"github.com/tripbill/tripbill/internal/auth"
	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/internal/database"
	"github.com/tripbill/tripbill/internal/services"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		Audience:       strings.TrimSpace(c.JWT.Audience),
		AccessTokenTTL: ttl,
	}
}

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:      strings.TrimSpace(c.Redis.URL),
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Timeout:  c.Redis.Timeout,
	}
}

// ConnectionConfig converts DatabaseConfig into database.Open parameters.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:       strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:         c.Path,
		DSN:          c.DSN,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
		LogQueries:   c.LogQueries,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}
	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// InvitationOptions converts the invitation defaults into service options.
// Zero values keep the service defaults.
func (c *Config) InvitationOptions() []services.InvitationOption {
	opts := []services.InvitationOption{
		services.WithInvitationBaseURL(c.Server.PublicBaseURL),
	}
	if c.Invitations.DefaultExpiry > 0 {
		opts = append(opts, services.WithInvitationExpiry(c.Invitations.DefaultExpiry))
	}
	if c.Invitations.DefaultMaxUses > 0 {
		opts = append(opts, services.WithInvitationMaxUses(c.Invitations.DefaultMaxUses))
	}
	if c.Invitations.TokenBytes > 0 {
		opts = append(opts, services.WithInvitationTokenSize(c.Invitations.TokenBytes))
	}
	if c.Invitations.QRSize > 0 {
		opts = append(opts, services.WithInvitationQRSize(c.Invitations.QRSize))
	}
	return opts
}
