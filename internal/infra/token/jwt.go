package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// アクセストークンから取り出す値
type Claims struct {
	UserID       int64
	Email        string
	Role         model.Role
	TokenVersion int
}

// HS256でアクセストークンを発行・検証する
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: ttl}
}

// sub/email/role/tvを署名して返す
func (m *JWTManager) Issue(user model.User, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"tv":    user.TokenVersion,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// 署名・アルゴリズム・期限を検証してclaimsを返す
func (m *JWTManager) Parse(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	userID, err := parseInt64(mc["sub"])
	if err != nil || userID <= 0 {
		return Claims{}, ErrInvalidToken
	}

	//roleを取り出す（USER/ADMIN）
	role, _ := mc["role"].(string)
	if role == "" {
		return Claims{}, ErrInvalidToken
	}

	tv, err := parseInt64(mc["tv"])
	if err != nil || tv < 0 {
		return Claims{}, ErrInvalidToken
	}

	//emailは古いトークンには無い
	email, _ := mc["email"].(string)

	return Claims{
		UserID:       userID,
		Email:        email,
		Role:         model.Role(role),
		TokenVersion: int(tv),
	}, nil
}

// JSONの数値はfloat64で来る
func parseInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid number claim")
	}
}
