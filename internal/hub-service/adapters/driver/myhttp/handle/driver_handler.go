package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fleet-dash/internal/contracts"
	"fleet-dash/internal/hub-service/adapters/driver/myhttp/middleware"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/mylogger"
)

type DriverRegistry interface {
	Register(ctx context.Context, req contracts.RegisterDriverRequest) (contracts.Driver, error)
	List(ctx context.Context) ([]contracts.Driver, error)
	Remove(ctx context.Context, id string) error
}

type DriverLogin interface {
	Login(ctx context.Context, mobileNumber, password string) (string, string, error)
}

type DriverHandler struct {
	registry DriverRegistry
	login    DriverLogin
	mylog    mylogger.Logger
}

type loginRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Password     string `json:"password"`
}

func NewDriverHandler(registry DriverRegistry, login DriverLogin, mylog mylogger.Logger) *DriverHandler {
	return &DriverHandler{
		registry: registry,
		login:    login,
		mylog:    mylog,
	}
}

func (dh *DriverHandler) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contracts.RegisterDriverRequest

		mylog := dh.mylog.Action("Register")

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			mylog.Error("Failed to parse driver", err)
			jsonError(w, http.StatusBadRequest, errors.New("failed to parse JSON"), "Failed to add driver.")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), WaitTime*time.Second)
		defer cancel()

		driver, err := dh.registry.Register(ctx, req)
		if err != nil {
			switch {
			case errors.Is(err, myerrors.ErrFieldIsEmpty), errors.Is(err, myerrors.ErrInvalidLocation),
				errors.Is(err, myerrors.ErrInvalidStatus):
				jsonError(w, http.StatusBadRequest, err, err.Error())
			case errors.Is(err, myerrors.ErrMobileRegistered):
				jsonError(w, http.StatusConflict, err, "Mobile number is already registered.")
			default:
				jsonError(w, http.StatusInternalServerError, err, "Failed to add driver.")
			}
			return
		}

		jsonResponse(w, http.StatusCreated, driver)
	}
}

func (dh *DriverHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), WaitTime*time.Second)
		defer cancel()

		drivers, err := dh.registry.List(ctx)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err, "Failed to fetch drivers.")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]interface{}{"data": drivers})
	}
}

func (dh *DriverHandler) Remove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		ctx, cancel := context.WithTimeout(r.Context(), WaitTime*time.Second)
		defer cancel()

		if err := dh.registry.Remove(ctx, id); err != nil {
			switch {
			case errors.Is(err, myerrors.ErrDriverNotFound):
				jsonError(w, http.StatusNotFound, err, "Driver not found.")
			case errors.Is(err, myerrors.ErrFieldIsEmpty):
				jsonError(w, http.StatusBadRequest, err, err.Error())
			default:
				jsonError(w, http.StatusInternalServerError, err, "Failed to remove the driver.")
			}
			return
		}
		if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
			dh.mylog.Action("Remove").Info("driver removed by operator", "driver_id", id, "operator", claims.Subject)
		}
		jsonResponse(w, http.StatusOK, contracts.MessageResponse{Message: "Driver removed successfully."})
	}
}

func (dh *DriverHandler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest

		mylog := dh.mylog.Action("Login")

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			mylog.Error("Failed to parse login", err)
			jsonError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), WaitTime*time.Second)
		defer cancel()

		driverID, token, err := dh.login.Login(ctx, req.MobileNumber, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, myerrors.ErrBadCredentials):
				jsonError(w, http.StatusUnauthorized, err)
			case errors.Is(err, myerrors.ErrFieldIsEmpty):
				jsonError(w, http.StatusBadRequest, err)
			default:
				jsonError(w, http.StatusInternalServerError, err)
			}
			return
		}

		jsonResponse(w, http.StatusOK, map[string]string{
			"driverId":   driverID,
			"jwt_access": token,
		})
		mylog.Info("driver logged in", "driver_id", driverID)
	}
}

func Health(alive func(ctx context.Context) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if !alive(ctx) {
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
