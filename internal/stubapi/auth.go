package stubapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// Claims are the access token claims. Subject is the numeric user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *Server) issueToken(u *user) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Role: u.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// requireToken validates the bearer token and stores the user id on the
// context. Failures answer with a "msg" body.
func (s *Server) requireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, msgBody("Missing Authorization Header"))
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return c.JSON(http.StatusUnprocessableEntity, msgBody("Bad Authorization header. Expected 'Authorization: Bearer <JWT>'"))
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return s.signingKey, nil
			}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
			if errors.Is(err, jwt.ErrTokenExpired) {
				return c.JSON(http.StatusUnauthorized, msgBody("Token has expired"))
			}
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnprocessableEntity, msgBody("Signature verification failed"))
			}

			uid, err := strconv.Atoi(claims.Subject)
			if err != nil {
				return c.JSON(http.StatusUnprocessableEntity, msgBody("Invalid token subject"))
			}
			c.Set(userIDKey, uid)
			return next(c)
		}
	}
}

func currentUserID(c echo.Context) int {
	uid, _ := c.Get(userIDKey).(int)
	return uid
}
