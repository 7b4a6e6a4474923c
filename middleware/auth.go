package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"checkout-svc/apperr"
	"checkout-svc/models"
	"checkout-svc/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	principalKey = "principal"
	memberKey    = "member"
)

// OptionalAuth attaches a *models.Principal when the request carries a
// valid bearer token. Missing or invalid tokens leave the request
// anonymous so guest checkout can proceed.
func OptionalAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, err := principalFromHeader(c.GetHeader("Authorization"), secret); err == nil {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := principalFromHeader(c.GetHeader("Authorization"), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  apperr.CodeAuthRequired,
			})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// MemberDirectory resolves a principal to its member record.
type MemberDirectory interface {
	GetUserBySubject(ctx context.Context, subject string) (*models.User, error)
	GetMember(ctx context.Context, memberID string) (*models.Member, error)
}

// RequireVerifiedMember must run after RequireAuth. It admits only
// principals linked to a VERIFIED member.
func RequireVerifiedMember(dir MemberDirectory, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  apperr.CodeAuthRequired,
			})
			return
		}

		member, err := lookupMember(c.Request.Context(), dir, p.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "Only verified members can do this",
					"code":  apperr.CodeNotEligible,
				})
				return
			}
			logger.Error("Failed to resolve member",
				zap.String("trace_id", GetTraceID(c.Request.Context())),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
				"code":  apperr.CodeInternal,
			})
			return
		}
		if member.VerificationStatus != models.VerificationVerified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Only verified members can do this",
				"code":  apperr.CodeNotEligible,
			})
			return
		}

		c.Set(memberKey, member)
		c.Next()
	}
}

func lookupMember(ctx context.Context, dir MemberDirectory, subject string) (*models.Member, error) {
	user, err := dir.GetUserBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user.MemberID == nil {
		return nil, repository.ErrNotFound
	}
	return dir.GetMember(ctx, *user.MemberID)
}

func PrincipalFrom(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok
}

func MemberFrom(c *gin.Context) (*models.Member, bool) {
	v, ok := c.Get(memberKey)
	if !ok {
		return nil, false
	}
	m, ok := v.(*models.Member)
	return m, ok
}

func principalFromHeader(header string, secret []byte) (*models.Principal, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}
	return ParseToken(raw, secret)
}

// ParseToken validates an HS256 access token and returns its subject.
func ParseToken(raw string, secret []byte) (*models.Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("token has no subject")
	}
	email, _ := claims["email"].(string)
	return &models.Principal{Subject: sub, Email: email}, nil
}
