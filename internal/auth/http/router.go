package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/httpx"
	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
	"github.com/aussiebroadwan/otpauth/pkg/slogx"
	"github.com/aussiebroadwan/otpauth/pkg/validatex"
)

// Pinger is a dependency /readyz can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	validator    *validatex.Validator
	clock        clock.Clocker
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	database   Pinger
	challenges Pinger

	AuthService *service.AuthService
	Directory   service.UserDirectory
}

// RouterOptions are the dependencies shared by every handler.
type RouterOptions struct {
	Keys         *jwtx.KeySet
	Verifier     jwtx.Verifier // session token verifier
	Validator    *validatex.Validator
	Clock        clock.Clocker
	BuildVersion string
	Database     Pinger
	Challenges   Pinger
	Logger       *slog.Logger
}

func NewRouter(opts RouterOptions) *Router {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         opts.Keys,
		verifier:     opts.Verifier,
		validator:    opts.Validator,
		clock:        opts.Clock,
		buildVersion: opts.BuildVersion,
		startTime:    opts.Clock.Now(),
		database:     opts.Database,
		challenges:   opts.Challenges,
		logger:       opts.Logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			OTP Authentication Service API
//	@version		0.1.0
//	@description	Two-step sign-in: a password check issues a short-lived pending token and
//	@description	sends a one-time code out of band; the code and pending token are then
//	@description	exchanged for a session token. Tokens are JWTs verifiable via the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/otpauth
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Pending or session JWT. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{
		AuthService: r.AuthService,
		Validator:   r.validator,
		Clock:       r.clock,
	}
	verify := &VerifyOTPHandler{
		AuthService: r.AuthService,
		Validator:   r.validator,
		Clock:       r.clock,
	}

	r.Mux.Handle("POST /v1/auth/login", login)
	r.Mux.Handle("POST /v1/auth/verify-otp", verify)
}

func (r *Router) registerUsers() {
	h := &UserInfoHandler{Directory: r.Directory}

	// Session tokens only; a pending token fails token_use.
	secured := httpx.Chain(h,
		httpx.AuthnMiddleware(jwtx.UseVerifier{Verifier: r.verifier, Use: jwtx.TokenUseSession}),
	)

	r.Mux.Handle("GET /v1/userinfo", secured)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json", JWKSHandler(r.keys))
	r.Mux.Handle("GET /livez", LivezHandler(r.clock, r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.clock, r.startTime, r.buildVersion, r.database, r.challenges, r.keys))
}
