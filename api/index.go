package handler

import (
	"context"
	"net/http"

	"habinest-backend/bootstrap"
	"habinest-backend/internal/config"
	"habinest-backend/internal/interfaces/router"
)

var h http.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	bootstrap.SetupLogging(cfg)
	app, err := bootstrap.New(cfg)
	if err != nil {
		panic("app create: " + err.Error())
	}
	if _, err := app.Reindex(context.Background()); err != nil {
		panic(err)
	}
	h = router.Handler(app.Fiber)
}

// Handler is the serverless entry point. All requests are rewritten here.
func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()
	h.ServeHTTP(w, r)
}
