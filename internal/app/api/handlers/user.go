package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	mw "github.com/fatflowers/repairdesk/internal/app/api/middleware"
	"github.com/fatflowers/repairdesk/internal/app/service/user"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/response"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Me is the identity carried by a session token.
type Me struct {
	ID    string         `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Role  types.UserRole `json:"role"`
}

func setSessionCookie(c *gin.Context, cfg *config.Config, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Auth.CookieName, token, maxAge, "/", "", cfg.Env == config.EnvProd, true)
}

// ApiLogin
// @Summary      Log in
// @Description  Checks the password and sets the session cookie. The token is also returned for API clients.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Credentials"
// @Success      200      {object}  user.Session
// @Failure      400      {object}  response.ErrorBody
// @Failure      401      {object}  response.ErrorBody
// @Router       /api/v1/auth/login [post]
func ApiLogin(us *user.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		sess, err := us.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			response.Abort(c, err)
			return
		}
		setSessionCookie(c, cfg, sess.Token, int(time.Until(sess.ExpiresAt).Seconds()))
		c.JSON(http.StatusOK, sess)
	}
}

// ApiLogout
// @Summary      Log out
// @Tags         Auth
// @Success      204
// @Router       /api/v1/auth/logout [post]
func ApiLogout(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		setSessionCookie(c, cfg, "", -1)
		c.Status(http.StatusNoContent)
	}
}

// ApiMe
// @Summary      Current session
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  Me
// @Failure      401  {object}  response.ErrorBody
// @Router       /api/v1/auth/me [get]
func ApiMe(parser mw.TokenParser, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := mw.Claims(c)
		if !ok {
			token := mw.SessionToken(c, cfg.Auth.CookieName)
			if token == "" {
				response.Abort(c, fmt.Errorf("%w: not logged in", apperr.ErrUnauthorized))
				return
			}
			var err error
			if claims, err = parser.Parse(token); err != nil {
				response.Abort(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, Me{ID: claims.UserID, Email: claims.Email, Name: claims.Name, Role: claims.Role})
	}
}

// ApiListUsers
// @Summary      List staff accounts
// @Tags         Users
// @Produce      json
// @Param        role  query     string  false  "ADMIN, TECHNICIAN or STAFF"
// @Success      200   {array}   models.User
// @Router       /api/v1/users [get]
func ApiListUsers(us *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := us.List(c.Request.Context(), c.Query("role"))
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// ApiCreateUser
// @Summary      Create a staff account
// @Description  Admins only when auth is enabled.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request  body      user.CreateInput  true  "Account"
// @Success      201      {object}  models.User
// @Failure      400      {object}  response.ErrorBody
// @Failure      403      {object}  response.ErrorBody
// @Failure      409      {object}  response.ErrorBody
// @Router       /api/v1/users [post]
func ApiCreateUser(us *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err)
			return
		}
		u, err := us.Create(c.Request.Context(), in)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// RegisterAuthRoutes mounts the session endpoints. They sit outside the auth
// middleware so that login stays reachable.
func RegisterAuthRoutes(r gin.IRouter, us *user.Service, cfg *config.Config) {
	g := r.Group("/auth")
	g.POST("/login", ApiLogin(us, cfg))
	g.POST("/logout", ApiLogout(cfg))
	g.GET("/me", ApiMe(us, cfg))
}

func RegisterUserRoutes(r gin.IRouter, us *user.Service, cfg *config.Config) {
	g := r.Group("/users")
	g.GET("", ApiListUsers(us))
	g.POST("", mw.RequireRole(cfg.Auth, string(types.UserRoleAdmin)), ApiCreateUser(us))
}
