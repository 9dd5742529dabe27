package authz

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 令牌无效或缺少调用方服务
var ErrInvalidToken = errors.New("invalid service token")

// ServiceClaims 服务间访问令牌声明
type ServiceClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// IssueServiceToken 签发 HS256 服务令牌，ttl 为 0 时不过期
func IssueServiceToken(secret, issuer, serviceName string, ttl time.Duration, now time.Time) (string, error) {
	serviceName = strings.TrimSpace(serviceName)
	if secret == "" || serviceName == "" {
		return "", ErrInvalidToken
	}
	claims := ServiceClaims{
		Service: serviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  serviceName,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseServiceToken 校验服务令牌并返回声明
func ParseServiceToken(secret, issuer, tokenString string) (*ServiceClaims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	claims := &ServiceClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Service) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
