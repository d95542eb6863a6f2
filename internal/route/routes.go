package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"visionbridge/internal/config"
	"visionbridge/internal/dto"
	"visionbridge/internal/handler"
	"visionbridge/internal/logger"
	"visionbridge/internal/middleware"
	"visionbridge/internal/repository"
	"visionbridge/internal/service/metrics"
	ws "visionbridge/internal/service/websocket"
)

// staticDir holds the viewer pages.
const staticDir = "static"

// Dependencies are the services the HTTP surface is built on. The
// repositories are nil when the archive is disabled.
type Dependencies struct {
	Controller    handler.Controller
	Hub           *ws.HubService
	Config        *config.Config
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
	Sessions      *middleware.SessionStore
	CaptureRepo   repository.CaptureRepository
	DetectionRepo repository.DetectionRepository
}

// dynamicHTMLHandler serves /path as static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the viewer socket, the control and archive APIs,
// metrics, logs and auth, wrapped in rate limiting and authentication.
func SetupRoutes(d Dependencies) http.Handler {
	r := mux.NewRouter()
	ctrl, log := d.Controller, d.Logger

	r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/view", handler.ViewWebsocketHandler(ctrl, d.Hub, log))
	api.HandleFunc("/snapshot", handler.SnapshotHandler(ctrl, log)).Methods(http.MethodGet)
	api.HandleFunc("/camera/start", handler.CommandHandler(ctrl, dto.CommandStartCamera, log)).Methods(http.MethodPost)
	api.HandleFunc("/camera/stop", handler.CommandHandler(ctrl, dto.CommandStopCamera, log)).Methods(http.MethodPost)
	api.HandleFunc("/analyze", handler.CommandHandler(ctrl, dto.CommandAnalyze, log)).Methods(http.MethodPost)
	api.HandleFunc("/auto", handler.AutoModeHandler(ctrl, log)).Methods(http.MethodPost)
	api.HandleFunc("/auto/toggle", handler.CommandHandler(ctrl, dto.CommandToggleAuto, log)).Methods(http.MethodPost)
	api.HandleFunc("/connection/check", handler.CommandHandler(ctrl, dto.CommandCheckConnection, log)).Methods(http.MethodPost)
	api.HandleFunc("/connection/test", handler.CommandHandler(ctrl, dto.CommandTestConnection, log)).Methods(http.MethodPost)

	if d.CaptureRepo != nil {
		api.HandleFunc("/captures", handler.GetCapturesHandler(log, d.CaptureRepo, d.DetectionRepo)).Methods(http.MethodGet)
		api.HandleFunc("/captures", handler.ClearCapturesHandler(d.Config, log, d.CaptureRepo)).Methods(http.MethodDelete)
		api.HandleFunc("/captures/stats", handler.CaptureStatsHandler(log, d.CaptureRepo)).Methods(http.MethodGet)
		api.HandleFunc("/captures/{id:[0-9]+}/image", handler.ViewCaptureHandler(log, d.CaptureRepo)).Methods(http.MethodGet)
		api.HandleFunc("/captures/{id:[0-9]+}", handler.DeleteCaptureHandler(log, d.CaptureRepo)).Methods(http.MethodDelete)
	}
	if d.DetectionRepo != nil {
		api.HandleFunc("/captures/objects", handler.CaptureObjectsHandler(log, d.DetectionRepo)).Methods(http.MethodGet)
	}

	// Log endpoints
	r.HandleFunc("/logs/{level}", handler.ShowLogsHandler(log.Dir())).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(log)).Methods(http.MethodPost)

	// Auth endpoints
	r.HandleFunc("/auth/login", handler.LoginHandler(d.Sessions, log)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", handler.LogoutHandler(d.Sessions)).Methods(http.MethodGet, http.MethodPost)

	// /settings -> static/settings.html
	r.PathPrefix("/").HandlerFunc(dynamicHTMLHandler)

	r.Use(middleware.RateLimit(d.Config.APIRateLimit, d.Config.APIRateBurst))
	r.Use(middleware.AuthMiddleware(d.Sessions))
	return r
}
