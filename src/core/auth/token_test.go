package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndVerify(t *testing.T) {
	at, err := NewAuthToken("secret", time.Minute)
	if err != nil {
		t.Fatalf("NewAuthToken() error = %v", err)
	}
	token, err := at.GenerateToken("img-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	id, err := at.VerifyToken(token)
	if err != nil || id != "img-1" {
		t.Errorf("VerifyToken() = %q, %v", id, err)
	}
	if err := at.VerifyForImage(token, "img-1"); err != nil {
		t.Errorf("VerifyForImage() error = %v", err)
	}
	if err := at.VerifyForImage(token, "img-2"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("其他图片应被拒绝, err = %v", err)
	}
}

func TestVerifyToken_Rejects(t *testing.T) {
	at, _ := NewAuthToken("secret", time.Minute)
	other, _ := NewAuthToken("other-secret", time.Minute)
	foreign, _ := other.GenerateToken("img-1")

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"image_id": "img-1",
		"exp":      time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))

	noImage, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("secret"))

	tests := map[string]string{
		"garbage":       "not-a-token",
		"wrong secret":  foreign,
		"expired":       expired,
		"missing claim": noImage,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := at.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewAuthToken_EmptySecret(t *testing.T) {
	if _, err := NewAuthToken("", time.Minute); err == nil {
		t.Error("空密钥应返回错误")
	}
}
