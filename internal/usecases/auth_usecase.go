package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"zapclinic/internal/entities"
	"zapclinic/internal/repository"
)

type AuthUsecase struct {
	operatorRepo *repository.OperatorRepository
	jwtSecret    []byte
}

func NewAuthUsecase(repo *repository.OperatorRepository, secret string) *AuthUsecase {
	return &AuthUsecase{
		operatorRepo: repo,
		jwtSecret:    []byte(secret),
	}
}

func (uc *AuthUsecase) Login(username, password string) (string, error) {
	op, err := uc.operatorRepo.GetByUsername(username)
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": op.ID,
		"role":        op.Role,
		"exp":         time.Now().Add(time.Hour * 24).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return tokenString, nil
}

// EnsureAdmin creates a root operator if none exists (called on startup)
func (uc *AuthUsecase) EnsureAdmin(username, password string) error {
	op, err := uc.operatorRepo.GetByUsername(username)
	if err != nil {
		return err
	}
	if op == nil {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		admin := &entities.Operator{
			Username:     username,
			PasswordHash: string(hashed),
			Role:         "admin",
		}
		return uc.operatorRepo.Create(admin)
	}
	return nil
}
