package auth

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/you/kycstore/domain"
)

const (
	FormatJWT    = "jwt"
	FormatCustom = "custom"

	// customTokenMaxAge bounds tokens that only carry an issue timestamp
	customTokenMaxAge = 15 * 24 * time.Hour
)

// JWTInspector implements domain.TokenInspector. Signatures are never
// checked here: the backend enforces them, the client only needs expiry.
type JWTInspector struct {
	parser *jwt.Parser
	now    func() time.Time
	maxAge time.Duration
}

// NewJWTInspector creates a token inspector
func NewJWTInspector() *JWTInspector {
	return &JWTInspector{
		parser: jwt.NewParser(),
		now:    time.Now,
		maxAge: customTokenMaxAge,
	}
}

// WithClock replaces the time source
func (j *JWTInspector) WithClock(now func() time.Time) *JWTInspector {
	j.now = now
	return j
}

// Inspect implements domain.TokenInspector
func (j *JWTInspector) Inspect(token string) (*domain.TokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrTokenMalformed
	}
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, domain.ErrTokenMalformed
	}

	if claims, ok := j.inspectJWT(token); ok {
		if claims.ExpiresAt > 0 {
			if j.now().Unix() >= claims.ExpiresAt {
				return nil, domain.ErrTokenExpired
			}
			return claims, nil
		}
		return j.checkTimestamp(claims, parts)
	}

	payload, ok := decodeCustomPayload(parts[0])
	if !ok {
		return nil, domain.ErrTokenMalformed
	}
	claims := claimsFromMap(payload)
	claims.Format = FormatCustom
	if claims.ExpiresAt > 0 {
		if j.now().Unix() >= claims.ExpiresAt {
			return nil, domain.ErrTokenExpired
		}
		return claims, nil
	}
	return j.checkTimestamp(claims, parts)
}

func (j *JWTInspector) inspectJWT(token string) (*domain.TokenClaims, bool) {
	mc := jwt.MapClaims{}
	if _, _, err := j.parser.ParseUnverified(token, mc); err != nil {
		return nil, false
	}
	claims := claimsFromMap(mc)
	claims.Format = FormatJWT
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Unix()
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Unix()
	}
	return claims, true
}

// checkTimestamp applies the age limit of tokens whose second segment is a
// millisecond issue time. Tokens without any expiry information are valid.
func (j *JWTInspector) checkTimestamp(claims *domain.TokenClaims, parts []string) (*domain.TokenClaims, error) {
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ms <= 0 {
		return claims, nil
	}
	issued := time.UnixMilli(ms)
	if j.now().Sub(issued) > j.maxAge {
		return nil, domain.ErrTokenExpired
	}
	claims.IssuedAt = issued.Unix()
	claims.ExpiresAt = issued.Add(j.maxAge).Unix()
	return claims, nil
}

func decodeCustomPayload(segment string) (map[string]interface{}, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		raw, err := enc.DecodeString(segment)
		if err != nil {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return m, true
	}
	return nil, false
}

func claimsFromMap(m map[string]interface{}) *domain.TokenClaims {
	claims := &domain.TokenClaims{}
	for _, k := range []string{"userId", "id", "sub"} {
		if v, ok := m[k].(string); ok && v != "" {
			claims.UserID = v
			break
		}
	}
	if role, ok := m["role"].(string); ok {
		claims.Role = role
	}
	if exp, ok := m["exp"].(float64); ok {
		claims.ExpiresAt = int64(exp)
	}
	return claims
}

var _ domain.TokenInspector = (*JWTInspector)(nil)
