package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"page-organizer"}`))
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/documents", h.UploadDocument).Methods("POST")
	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/pages/{source:[0-9]+}/thumbnail", h.GetThumbnail).Methods("GET")

	api.HandleFunc("/moves", h.Move).Methods("POST")
	api.HandleFunc("/drops", h.Drop).Methods("POST")
	api.HandleFunc("/order", h.Arrange).Methods("PUT")

	api.HandleFunc("/exports", h.Export).Methods("POST")
	api.HandleFunc("/downloads/{token}", h.Download).Methods("GET")
	api.HandleFunc("/prints", h.Print).Methods("POST")
	api.HandleFunc("/prints/{token}", h.GetPrintDocument).Methods("GET")
	api.HandleFunc("/prints/{token}/done", h.PrintDone).Methods("POST")

	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/events", h.GetEvents).Methods("GET")

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
		},
		MaxAge: 300,
	})

	return c.Handler(router)
}
