package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Logout
	RouteLogin      = "/login"
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// Auth Routes - User Consent
	RouteConsent = "/auth/consent"

	// Auth Routes - Registration
	RouteRegister       = "/auth/register"
	RouteRegisterClient = "/admin/register_client"

	// OAuth2 Routes
	RouteOAuth2Authorize = "/oauth/authorize"
	RouteOAuth2Token     = "/oauth/token"
	RouteOAuth2Revoke    = "/oauth/revoke"

	// Protected API Routes
	RouteAPIMe             = "/api/me"
	RouteAPICustomerOrders = "/api/customer/orders"
	RouteAPIStoreDashboard = "/api/store/dashboard"

	RouteHealth = "/health"
)
