package www

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"pagesmith/engine"
	"pagesmith/engine/config"
	"pagesmith/www/api"
	"pagesmith/www/middleware"
)

type Router struct {
	Config *config.ConfigSettings
	Engine *engine.BuildEngine
}

func (router *Router) Start() {
	// choose http/https
	var protocol string
	if router.Config.SslSettings == (config.SslConfig{}) {
		protocol = "http"
	} else {
		protocol = "https"
	}

	mux := http.NewServeMux()
	api.SetConfig(router.Config)
	api.SetEngine(router.Engine)

	/******************************************
	|                                         |
	|              PUBLIC ROUTES              |
	|                                         |
	******************************************/

	PUBLIC := middleware.MiddlewareChain(middleware.Logging, middleware.Cors)

	mux.HandleFunc("GET /{$}", PUBLIC(api.LandingPage))
	// submissions authenticate with the in-payload secret, not a bearer token
	mux.HandleFunc("POST /api-endpoint", PUBLIC(api.ReceiveSubmission))

	/******************************************
	|                                         |
	|               ADMIN ROUTES              |
	|                                         |
	******************************************/

	ADMINAUTH := middleware.MiddlewareChain(middleware.Logging, middleware.Cors, middleware.Authentication("admin"))

	mux.HandleFunc("GET /api/jobs", ADMINAUTH(api.GetJobs))
	mux.HandleFunc("GET /api/jobs/{id}", ADMINAUTH(api.GetJob))
	mux.HandleFunc("POST /api/jobs/{id}/notify", ADMINAUTH(api.RedeliverJob))
	mux.HandleFunc("POST /api/jobs/{id}/requeue", ADMINAUTH(api.RequeueJob))

	mux.HandleFunc("GET /api/engine", ADMINAUTH(api.GetEngine))
	mux.HandleFunc("POST /api/engine/pause", ADMINAUTH(api.PauseEngine))

	// start server
	server := http.Server{
		Addr:    fmt.Sprintf("%s:%d", router.Config.RequiredSettings.BindAddress, router.Config.MiscSettings.Port),
		Handler: mux,
	}
	slog.Info(fmt.Sprintf("Starting Web Server on %s://%s:%d", protocol, router.Config.RequiredSettings.BindAddress, router.Config.MiscSettings.Port))

	// start server
	if router.Config.SslSettings != (config.SslConfig{}) {
		log.Fatal(server.ListenAndServeTLS(router.Config.SslSettings.HttpsCert, router.Config.SslSettings.HttpsKey))
	} else {
		log.Fatal(server.ListenAndServe())
	}
}
