package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/hub-service/core/ports/driven"
	"fleet-dash/internal/mylogger"
)

const DriverTokenTTL = 7 * 24 * time.Hour

type LoginService struct {
	drivers driven.IDriverRepo
	auth    *AuthService
	mylog   mylogger.Logger
}

func NewLoginService(drivers driven.IDriverRepo, auth *AuthService, mylog mylogger.Logger) *LoginService {
	return &LoginService{drivers: drivers, auth: auth, mylog: mylog.Action("Login")}
}

// Login checks a driver's password and returns a driver token.
func (ls *LoginService) Login(ctx context.Context, mobileNumber, password string) (string, string, error) {
	if mobileNumber == "" || password == "" {
		return "", "", fmt.Errorf("credentials: %w", myerrors.ErrFieldIsEmpty)
	}
	id, hash, err := ls.drivers.PasswordHash(ctx, mobileNumber)
	if errors.Is(err, myerrors.ErrDriverNotFound) {
		return "", "", myerrors.ErrBadCredentials
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup driver: %w", err)
	}
	if !checkPassword(hash, password) {
		ls.mylog.Warn("wrong password", "driver_id", id)
		return "", "", myerrors.ErrBadCredentials
	}
	token, err := ls.auth.Issue(id, RoleDriver, DriverTokenTTL)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}
