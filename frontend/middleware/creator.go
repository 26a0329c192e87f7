package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"shaderland/backend/shared"
)

const (
	// CreatorCookie holds the anonymous creator id of a browser.
	CreatorCookie = "creator_id"
	creatorLocal  = "creatorID"
	creatorMaxAge = 365 * 24 * time.Hour
)

// NewID is swapped in tests.
var NewID = shared.DefaultIDGenerator

// CreatorMiddleware makes sure every browser carries a creator id, issuing a
// fresh one when the cookie is missing or malformed.
func CreatorMiddleware(c *fiber.Ctx) error {
	id := c.Cookies(CreatorCookie)
	if !ValidCreatorID(id) {
		id = NewID()
		c.Cookie(&fiber.Cookie{
			Name:     CreatorCookie,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().Add(creatorMaxAge),
			Secure:   c.Protocol() == "https",
			HTTPOnly: false, // read by the page script for generate requests
			SameSite: "Lax",
		})
	}
	c.Locals(creatorLocal, id)
	return c.Next()
}

// CreatorID returns the id stored by CreatorMiddleware.
func CreatorID(c *fiber.Ctx) string {
	id, _ := c.Locals(creatorLocal).(string)
	return id
}

// ValidCreatorID reports whether id looks like one we issued.
func ValidCreatorID(id string) bool {
	if len(id) != shared.ShaderIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z') {
			return false
		}
	}
	return true
}

// HTTPSRedirect sends plain HTTP requests arriving through API Gateway or a
// load balancer to the HTTPS origin.
func HTTPSRedirect(c *fiber.Ctx) error {
	if c.Get("X-Forwarded-Proto", "https") == "http" {
		return c.Redirect("https://"+c.Hostname()+c.OriginalURL(), fiber.StatusMovedPermanently)
	}
	return c.Next()
}
