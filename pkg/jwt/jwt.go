package jwtPkg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const ClaimsKey = "webhook_claims"

// Sign issues an HS256 token carrying data, e.g. for a voice agent platform calling the intent webhook.
func Sign(data map[string]interface{}, expiresIn time.Duration, secret string) (string, int64, error) {
	if secret == "" {
		return "", 0, errors.New("jwt secret not set")
	}
	expiredAt := time.Now().Add(expiresIn).Unix()

	claims := jwt.MapClaims{}
	for k, v := range data {
		claims[k] = v
	}
	claims["exp"] = expiredAt

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

func VerifyTokenHeader(c *fiber.Ctx, secret string) (*jwt.Token, error) {
	log := logrus.WithField("func", "VerifyTokenHeader")

	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, errors.New("empty Authorization header")
	}

	accessToken, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("invalid Authorization format")
	}

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, errors.New("empty token")
	}

	if secret == "" {
		log.Error("JWT secret not configured")
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		log.WithError(err).Debug("Failed to parse JWT token")
		return nil, err
	}

	return token, nil
}

func GetClaims(c *fiber.Ctx) (jwt.MapClaims, error) {
	claims, ok := c.Locals(ClaimsKey).(jwt.MapClaims)
	if !ok {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}
