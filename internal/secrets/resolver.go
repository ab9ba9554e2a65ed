package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/BoranPatron/tradeboard/pkg/secrets"
)

// TokenResolver resolves the marketplace API bearer token, preferring AWS
// Secrets Manager with an in-memory TTL cache, and falling back to a static
// token from the environment when no provider is configured.
//
// Secret naming convention: {env}/tradeboard/api
type TokenResolver struct {
	logger      *zap.Logger
	env         string
	provider    pkgsecrets.Provider
	cache       *pkgsecrets.Cache[pkgsecrets.APIToken]
	staticToken string
}

// NewTokenResolver constructs a resolver. provider may be nil, in which case
// only the static token is served.
func NewTokenResolver(
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[pkgsecrets.APIToken],
	staticToken string,
) *TokenResolver {
	return &TokenResolver{
		logger:      logger,
		env:         env,
		provider:    provider,
		cache:       cache,
		staticToken: staticToken,
	}
}

// secretName builds the AWS Secrets Manager key.
func (r *TokenResolver) secretName() string {
	return strings.ToLower(fmt.Sprintf("%s/tradeboard/api", r.env))
}

// Token returns the current bearer token for upstream requests.
func (r *TokenResolver) Token(ctx context.Context) (string, error) {
	if r.provider == nil {
		if r.staticToken == "" {
			return "", fmt.Errorf("no secrets provider and no static API token configured")
		}
		return r.staticToken, nil
	}

	key := r.secretName()
	if cached, ok := r.cache.Get(key); ok {
		return cached.Token, nil
	}

	raw, err := r.provider.GetSecret(ctx, key)
	if err != nil {
		r.logger.Warn("secrets.resolve_failed",
			zap.String("secret", key),
			zap.Error(err))
		if r.staticToken != "" {
			return r.staticToken, nil
		}
		return "", fmt.Errorf("resolve api token: %w", err)
	}

	tok := pkgsecrets.APIToken{
		Token:   raw["api_token"],
		BaseURL: raw["base_url"],
	}
	if tok.Token == "" {
		return "", fmt.Errorf("secret [%s] missing api_token field", key)
	}

	r.cache.Put(key, tok)
	return tok.Token, nil
}

// Bust drops the cached token (e.g. after a 401 from upstream) so the next
// call re-fetches from the provider.
func (r *TokenResolver) Bust() {
	r.cache.Bust(r.secretName())
}
