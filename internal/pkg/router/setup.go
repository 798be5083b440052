package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs a set of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// HttpRouter initializes controllers and the health route, the API router
	// registers everything under /api.
	setup(app, NewHttpRouter(), NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
