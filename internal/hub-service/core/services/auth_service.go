package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/myerrors"

	"github.com/golang-jwt/jwt"
)

const (
	RoleOperator = "OPERATOR"
	RoleDriver   = "DRIVER"
)

type AuthService struct {
	secretKey string
}

func NewAuthService(secretKey string) *AuthService {
	return &AuthService{
		secretKey: secretKey,
	}
}

// Issue signs an HS256 access token for subject.
func (a *AuthService) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(a.secretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (a *AuthService) Validate(tokenString string) (model.Claims, error) {
	tokenString = strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer ")
	if tokenString == "" {
		return model.Claims{}, fmt.Errorf("%w: empty", myerrors.ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
			return model.Claims{}, myerrors.ErrTokenExpired
		}
		return model.Claims{}, fmt.Errorf("%w: %v", myerrors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Claims{}, myerrors.ErrInvalidToken
	}
	if _, ok := claims["exp"].(float64); !ok {
		return model.Claims{}, fmt.Errorf("%w: exp is required", myerrors.ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return model.Claims{}, fmt.Errorf("%w: sub is required", myerrors.ErrInvalidToken)
	}
	if role != RoleOperator && role != RoleDriver {
		return model.Claims{}, fmt.Errorf("%w: unknown role %q", myerrors.ErrInvalidToken, role)
	}
	return model.Claims{Subject: sub, Role: role}, nil
}
