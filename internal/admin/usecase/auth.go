package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/chang-tasks/chang-go/internal/admin/domain"
	"github.com/chang-tasks/chang-go/internal/admin/email"
	"github.com/chang-tasks/chang-go/internal/admin/repository"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 15 * time.Minute
	defaultJWTTTL   = 24 * time.Hour
)

// AuthUsecase is the magic-link sign-in flow the admin API exposes: an
// operator requests a link by email, clicks it, and gets back a bearer JWT
// scoped to introspecting and cancelling tasks.
type AuthUsecase struct {
	operators     repository.OperatorRepository
	email         email.Sender
	jwtKey        []byte
	tokenTTL      time.Duration
	jwtTTL        time.Duration
	magicLinkBase string
}

func NewAuthUsecase(operators repository.OperatorRepository, emailSender email.Sender, jwtKey []byte, magicLinkBase string) *AuthUsecase {
	return &AuthUsecase{
		operators:     operators,
		email:         emailSender,
		jwtKey:        jwtKey,
		tokenTTL:      defaultTokenTTL,
		jwtTTL:        defaultJWTTTL,
		magicLinkBase: magicLinkBase,
	}
}

// RequestMagicLink finds or creates the operator, generates a secure token,
// stores its hash, and emails the verify link.
func (u *AuthUsecase) RequestMagicLink(ctx context.Context, emailAddr string) error {
	op, err := u.operators.FindOrCreate(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("find or create operator: %w", err)
	}

	raw := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)
	tokenHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))

	expiresAt := time.Now().Add(u.tokenTTL)
	if err = u.operators.CreateMagicToken(ctx, op.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store magic token: %w", err)
	}

	link := u.magicLinkBase + "/auth/verify?token=" + rawToken
	subject := "Your sign-in link"
	body := fmt.Sprintf(
		`<p>Click the link below to sign in (expires in 15 minutes):</p><p><a href="%s">%s</a></p>`,
		link, link,
	)
	if err = u.email.Send(ctx, emailAddr, subject, body); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

// VerifyMagicLink hashes the raw token, atomically claims it, and returns a
// signed JWT identifying the operator.
func (u *AuthUsecase) VerifyMagicLink(ctx context.Context, rawToken string) (string, error) {
	tokenHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))

	mt, err := u.operators.ClaimMagicToken(ctx, tokenHash)
	if err != nil {
		return "", domain.ErrTokenInvalid
	}

	op, err := u.operators.FindByID(ctx, mt.OperatorID)
	if err != nil {
		return "", fmt.Errorf("find operator: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   op.ID,
		"email": op.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(u.jwtTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(u.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
