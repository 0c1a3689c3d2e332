// Command platform-stub runs the in-memory platform API locally so the
// session client can be exercised without the real backend. Two accounts are
// seeded: an administrator and a student.
package main

import (
	"net/http"
	"os"

	"github.com/labstack/echo-contrib/echoprometheus"

	"github.com/learnsphere/platform-client/internal/core/domain"
	"github.com/learnsphere/platform-client/internal/stubapi"
	"github.com/learnsphere/platform-client/pkg/logger"
)

func main() {
	log := logger.Init(logger.Options{Level: os.Getenv("LOG_LEVEL"), Pretty: true})

	srv, err := stubapi.New(stubapi.Options{
		Users: []stubapi.SeedUser{
			{Password: "admin123", User: domain.User{ID: 1, RoleID: domain.RoleAdmin, FullName: "Demo Admin", Email: "admin@learnsphere.local"}},
			{Password: "student123", User: domain.User{ID: 2, RoleID: domain.RoleStudent, FullName: "Demo Student", Email: "student@learnsphere.local"}},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("building stub server")
	}

	e := srv.Echo()
	e.Use(echoprometheus.NewMiddleware("platform_stub"))
	e.GET("/metrics", echoprometheus.NewHandler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("platform stub listening")
	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
