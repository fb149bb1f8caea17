package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/metrics"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"

	_ "github.com/mwafayee/TCSS460-CredentialsAPI/api/credentials" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	gate         *authz.Gate
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *metrics.Metrics

	// Limiters builds one limiter per route. Defaults to in-process
	// token buckets; the app swaps in Redis when configured.
	Limiters httpx.LimiterFactory
	// ClientIP resolves the caller address for IP-keyed limits. Defaults to
	// the connection address; set it from TRUSTED_PROXIES behind a proxy.
	ClientIP httpx.KeyExtractor

	AccountService      *service.AccountService
	VerificationService *service.VerificationService
	TokenService        *service.TokenService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	gate *authz.Gate,
	buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		gate:         gate,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		metrics:      m,
		logger:       logger,
		Limiters:     httpx.NewLocalLimiterFactory(),
		ClientIP:     httpx.IPKeyExtractor,
	}

	// metrics sits innermost so it sees the request the mux stamps Pattern on.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.metrics.Middleware,
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerPasswordReset()
	r.registerVerification()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Credentials API
//	@version					1.0.0
//	@description				Identity service: accounts, bearer tokens, a five-tier role hierarchy
//	@description				for administrative operations, email and phone verification codes,
//	@description				and token-based password reset.
//	@description
//	@description				Access tokens are EdDSA or ES256 JWTs verifiable with the JWKS endpoint.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) byIP(name string, cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimit(r.Limiters(name, cfg), cfg, r.ClientIP)
}

func (r *Router) bySubject(name string, cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimit(r.Limiters(name, cfg), cfg, httpx.SubjectOrIPKeyExtractor(r.ClientIP))
}

// authed verifies the bearer token, then rate limits by account.
func (r *Router) authed(h http.HandlerFunc, name string, cfg httpx.RateLimitConfig, extra ...httpx.Middleware) http.Handler {
	mws := append([]httpx.Middleware{httpx.AuthnMiddleware(r.verifier)}, extra...)
	mws = append(mws, r.bySubject(name, cfg))
	return httpx.Chain(h, mws...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Accounts:  r.AccountService,
		Tokens:    r.TokenService,
		Hierarchy: r.gate.Hierarchy(),
	}

	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), r.byIP("register", httpx.StrictLimit)))

	// login is keyed by IP only so one address cannot spray many usernames
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), r.byIP("login", httpx.StrictLimit)))

	r.Mux.Handle("GET /v1/auth/me", r.authed(h.HandleMe, "me", httpx.LenientLimit))
	r.Mux.Handle("POST /v1/auth/password/change", r.authed(h.HandleChangePassword, "password_change", httpx.StrictLimit))
}

func (r *Router) registerPasswordReset() {
	h := &PasswordResetHandler{Verification: r.VerificationService}

	r.Mux.Handle("POST /v1/auth/password/reset-request",
		httpx.Chain(http.HandlerFunc(h.HandleRequest), r.byIP("reset_request", httpx.StrictLimit)))
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleComplete), r.byIP("reset_complete", httpx.StrictLimit)))
}

func (r *Router) registerVerification() {
	h := &VerifyHandler{Verification: r.VerificationService}

	r.Mux.Handle("POST /v1/auth/verify/{channel}/send", r.authed(h.HandleSend, "verify_send", httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/auth/verify/{channel}/confirm", r.authed(h.HandleConfirm, "verify_confirm", httpx.StrictLimit))
	r.Mux.Handle("GET /v1/auth/verify/{channel}", r.authed(h.HandleStatus, "verify_status", httpx.LenientLimit))
}

func (r *Router) registerAdmin() {
	h := &AdminUsersHandler{Accounts: r.AccountService, Hierarchy: r.gate.Hierarchy()}
	admin := RequireMinimumRole(r.gate, authz.Admin)

	r.Mux.Handle("GET /v1/admin/users", r.authed(h.HandleList, "admin_read", httpx.ModerateLimit, admin))
	r.Mux.Handle("POST /v1/admin/users", r.authed(h.HandleCreate, "admin_write", httpx.ModerateLimit, admin))
	r.Mux.Handle("GET /v1/admin/users/{id}", r.authed(h.HandleGet, "admin_read", httpx.ModerateLimit, admin))
	r.Mux.Handle("DELETE /v1/admin/users/{id}", r.authed(h.HandleDelete, "admin_write", httpx.ModerateLimit, admin))
	r.Mux.Handle("PUT /v1/admin/users/{id}/role", r.authed(h.HandleChangeRole, "admin_write", httpx.ModerateLimit, admin))
	r.Mux.Handle("PUT /v1/admin/users/{id}/password", r.authed(h.HandleSetPassword, "admin_write", httpx.ModerateLimit, admin))
	r.Mux.Handle("GET /v1/admin/roles", r.authed(RolesHandler(r.gate.Hierarchy()), "admin_read", httpx.ModerateLimit, admin))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys), r.byIP("jwks", httpx.PublicLimit)))
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion), r.byIP("livez", httpx.LenientLimit)))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys), r.byIP("readyz", httpx.LenientLimit)))
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}
