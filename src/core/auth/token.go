package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken token缺失、过期、签名错误或与图片不匹配
var ErrInvalidToken = errors.New("invalid session token")

// AuthToken 会话token，绑定一次上传的图片ID，问答接口凭它访问同一张图片
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
}

// NewAuthToken 创建token签发器
func NewAuthToken(secretKey string, ttl time.Duration) (*AuthToken, error) {
	if secretKey == "" {
		return nil, errors.New("secret key cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthToken{
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}, nil
}

// GenerateToken 为图片签发token
func (at *AuthToken) GenerateToken(imageID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"image_id": imageID,
		"exp":      now.Add(at.ttl).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(at.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken 校验token并返回其中的图片ID
func (at *AuthToken) VerifyToken(tokenString string) (string, error) {
	if at == nil || at.secretKey == nil {
		return "", errors.New("AuthToken is not initialized")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	imageID, ok := claims["image_id"].(string)
	if !ok || imageID == "" {
		return "", fmt.Errorf("%w: invalid image_id in claims", ErrInvalidToken)
	}
	return imageID, nil
}

// VerifyForImage 校验token且必须属于指定图片
func (at *AuthToken) VerifyForImage(tokenString, imageID string) error {
	got, err := at.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	if got != imageID {
		return fmt.Errorf("%w: token 不属于图片 %s", ErrInvalidToken, imageID)
	}
	return nil
}
