package common

const (
	// SessionCookieName carries the opaque session token issued on login.
	SessionCookieName = "formauth_session"

	// FlashCookieName carries the signed flash-message cookie session.
	FlashCookieName = "formauth_flash"

	// DashboardPath is where a successful login is redirected.
	DashboardPath = "/dashboard"
)
