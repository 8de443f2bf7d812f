package server

import (
	"github.com/wheats/oauth2-server/users"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /{$}", s.IndexHandler())

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleware()...))

	// CONSENT
	s.RegisterRouteHandler("POST "+RouteConsent, ChainMiddleware(s.ConsentSubmissionHandler(), s.HTMLMiddleware()...))

	// REGISTRATION
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterUserHandler(), s.APIMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteRegisterClient, ChainMiddleware(s.RegisterClientHandler(), s.APIMiddleware(s.RequireScope("admin"))...))

	// OAuth2 endpoints
	s.RegisterRouteHandler("GET "+RouteOAuth2Authorize, ChainMiddleware(s.AuthorizeHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.TokenHandler(), s.APIMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Revoke, ChainMiddleware(s.RevokeHandler(), s.APIMiddleware()...))

	// Protected resource endpoints
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireScope("profile"))...))
	s.RegisterRouteHandler("GET "+RouteAPICustomerOrders, ChainMiddleware(s.CustomerOrdersHandler(), s.APIMiddleware(s.RequireScope("customer"), s.RequireRole(users.RoleCustomer, users.RoleAdmin))...))
	s.RegisterRouteHandler("GET "+RouteAPIStoreDashboard, ChainMiddleware(s.StoreDashboardHandler(), s.APIMiddleware(s.RequireScope("store"), s.RequireRole(users.RoleStore, users.RoleAdmin))...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
