package main

import (
	"net/http"
	"strings"

	apperrors "sirius/pkg/errors"
	"sirius/pkg/iam"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

func newRouter(log *zap.Logger, validator *iam.Validator, redirectURL string) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("/auth")
	{
		auth.GET("/login", func(c *gin.Context) {
			var opts []iam.LoginOption
			if state := c.Query("state"); state != "" {
				opts = append(opts, iam.WithState(state))
			}
			c.Redirect(http.StatusFound, validator.GetLoginURL(redirectURL, opts...))
		})

		auth.GET("/callback", func(c *gin.Context) {
			if desc := c.Query("error_description"); desc != "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": desc})
				return
			}
			code := c.Query("code")
			if code == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
				return
			}

			token, err := validator.GetAccessToken(c.Request.Context(), code, redirectURL)
			if err != nil {
				if apperrors.IsClientSide(err) {
					c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
					return
				}
				log.Error("Failed to redeem authorization code", zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to sign in"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "Bearer"})
		})
	}

	api := router.Group("/api")
	api.Use(bearerAuth(log, validator))
	{
		api.GET("/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, c.MustGet(identityKey))
		})
	}

	return router
}

// bearerAuth stores the caller's *iam.Identity under identityKey
func bearerAuth(log *zap.Logger, validator *iam.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		identity, err := validator.GetIdentityFromAccessToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			if apperrors.IsErrorType(err, apperrors.ErrorTypeAuth) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid access token"})
				return
			}
			log.Error("Failed to validate access token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate access token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}
