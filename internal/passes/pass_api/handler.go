package pass_api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	accounts "ms-passes/internal/accounts/service"
	"ms-passes/internal/auth"
	"ms-passes/internal/logger"
	"ms-passes/internal/models"
	"ms-passes/internal/passes/layout"
	passes "ms-passes/internal/passes/service"
	"ms-passes/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	PassService   *passes.PassService
	UserService   *accounts.UserService
	Auth          *auth.Authenticator
	DefaultLayout layout.Policy
	CookieSecure  bool
	Logger        *logger.Logger

	validate *validator.Validate
}

func NewHandler(passService *passes.PassService, userService *accounts.UserService, authenticator *auth.Authenticator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{
		PassService:   passService,
		UserService:   userService,
		Auth:          authenticator,
		DefaultLayout: layout.MarginFlow(),
		Logger:        log,
		validate:      validator.New(),
	}
}

// RegisterRoutes mounts the public, admin, worker and client routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Middleware)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/", h.AdminDashboard)
			r.Post("/events", h.CreateEvent)
			r.Get("/events/{eventId}", h.GetEvent)
			r.Delete("/events/{eventId}", h.DeleteEvent)
			r.Post("/events/{eventId}/passes", h.GeneratePasses)
			r.Get("/events/{eventId}/passes.pdf", h.DownloadSheet)
			r.Post("/users", h.CreateUser)
			r.Delete("/users/{userId}", h.DeleteUser)
		})

		r.Route("/worker", func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleWorker))
			r.Get("/", h.WorkerDashboard)
			r.Post("/redeem", h.Redeem)
			r.Post("/manual_entry", h.Redeem)
			r.Get("/report", h.Report)
		})

		r.Route("/client", func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleClient))
			r.Get("/", h.Report)
			r.Get("/report", h.Report)
		})
	})
}

// decode reads a JSON or form body into v and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.Decode(r, v); err != nil {
		utils.WriteError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			utils.WriteError(w, r, http.StatusBadRequest, "Invalid request", validationMessage(validateErr))
			return false
		}
		utils.WriteError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}

func validationMessage(errs validator.ValidationErrors) string {
	msg := ""
	for i, err := range errs {
		if i > 0 {
			msg += ", "
		}
		switch err.ActualTag() {
		case "required":
			msg += fmt.Sprintf("field %s is required", err.Field())
		case "oneof":
			msg += fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param())
		default:
			msg += fmt.Sprintf("field %s is not valid", err.Field())
		}
	}
	return msg
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 1 {
		utils.WriteError(w, r, http.StatusBadRequest, "Invalid id", fmt.Sprintf("%s must be a positive integer", param))
		return 0, false
	}
	return id, true
}

// AccessLog logs every request through the API category.
func AccessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).Round(time.Microsecond).String())
		})
	}
}
