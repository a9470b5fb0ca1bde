package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/metrics"
	"github.com/maneesh/buildmanager/internal/workspace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Deps are the collaborators of the gateway routes.
type Deps struct {
	Registry       *workspace.Registry
	Projects       ProjectAPI
	Activity       *workspace.ActivitySync
	MetricsEnabled bool
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// NewRouter wires every gateway route.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(logging.Middleware)
	router.Use(metrics.Middleware(routeName))

	// liveness only, outside the traced routes
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	if d.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	traced := func(h http.Handler, name string) http.Handler {
		return otelhttp.NewHandler(h, name)
	}
	tracedFunc := func(h http.HandlerFunc, name string) http.Handler {
		return otelhttp.NewHandler(h, name)
	}

	ph := NewProjectHandler(d.Registry, d.Projects, d.Registry.Close, d.Activity)
	th := NewTeamHandler(d.Registry)
	fh := NewFolderHandler(d.Registry)

	router.Handle("/projects", tracedFunc(ph.List, "GET /projects")).Methods("GET")
	router.Handle("/projects", tracedFunc(ph.Create, "POST /projects")).Methods("POST")
	router.Handle("/projects/{id}", tracedFunc(ph.Get, "GET /projects/{id}")).Methods("GET")
	router.Handle("/projects/{id}", tracedFunc(ph.Delete, "DELETE /projects/{id}")).Methods("DELETE")

	p := router.PathPrefix("/projects/{id}").Subrouter()
	p.Handle("/tree", traced(NewReadHandler(d.Registry), "GET /tree")).Methods("GET")
	p.Handle("/folders", traced(fh, "POST /folders")).Methods("POST")
	p.Handle("/folders", traced(fh, "DELETE /folders")).Methods("DELETE")
	p.Handle("/files", traced(NewWriteHandler(d.Registry), "PUT /files")).Methods("PUT")
	p.Handle("/files", traced(NewRemoveFileHandler(d.Registry), "DELETE /files")).Methods("DELETE")
	p.Handle("/preview", traced(NewPreviewHandler(d.Registry), "GET /preview")).Methods("GET")

	p.Handle("/team", tracedFunc(th.List, "GET /team")).Methods("GET")
	p.Handle("/team", tracedFunc(th.Invite, "POST /team")).Methods("POST")
	p.Handle("/team/{userId}", tracedFunc(th.Remove, "DELETE /team/{userId}")).Methods("DELETE")
	p.Handle("/team/{userId}", tracedFunc(th.ChangeRole, "PATCH /team/{userId}")).Methods("PATCH")

	p.Handle("/reload", tracedFunc(ph.Reload, "POST /reload")).Methods("POST")
	p.Handle("/fields", tracedFunc(ph.UpdateField, "PATCH /fields")).Methods("PATCH")
	p.Handle("/budget", tracedFunc(ph.Budget, "GET /budget")).Methods("GET")
	p.Handle("/activity", tracedFunc(ph.Activity, "POST /activity")).Methods("POST")

	return router
}
