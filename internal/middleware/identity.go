package middleware

import "github.com/labstack/echo/v4"

// ClientHeader carries the browser's stable client key.  The wizard uses the
// same value as its draft key.
const ClientHeader = "X-Client-ID"

// identity names the caller for rate limiting: the staff ID when a token was
// verified, else the client key, else "anon".
func identity(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	if s := c.Request().Header.Get(ClientHeader); s != "" {
		return s
	}
	return "anon"
}
