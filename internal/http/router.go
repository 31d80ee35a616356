package httpx

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/you/medrecsvc/domain"
	"github.com/you/medrecsvc/internal/http/handlers"
	"github.com/you/medrecsvc/internal/http/middleware"
)

// BuildRouter wires every route. allowedOrigins enables CORS when non-empty.
func BuildRouter(sh *handlers.SignupHandlers, ah *handlers.AuthHandlers, jwtmw *middleware.AuthMW, cb middleware.CasbinMiddleware, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	auth := r.Group("/auth")
	auth.POST("/:role/signup", sh.Signup)
	auth.POST("/:role/send-otp", sh.SendOTP)
	auth.POST("/:role/resend-otp", sh.ResendOTP)
	auth.POST("/:role/verify-otp", sh.VerifyOTP)
	auth.POST("/:role/login", ah.Login)
	auth.POST("/refresh", ah.Refresh)

	v := r.Group("/").Use(jwtmw.WithJWT(), cb.Enforce())
	v.GET("/auth/me", ah.Me)
	v.POST("/auth/logout", ah.Logout)

	api := r.Group("/api").Use(jwtmw.WithJWT(), cb.Enforce())
	api.GET("/doctors/:id", ah.GetAccount(domain.RoleDoctor))
	api.PUT("/doctors/:id/profile", ah.CompleteProfile(domain.RoleDoctor))
	api.GET("/patients/:id", ah.GetAccount(domain.RolePatient))
	api.PUT("/patients/:id/profile", ah.CompleteProfile(domain.RolePatient))

	return r
}
