package web

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/server/services"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	msgLoginRequired = "Please log in to see the dashboard."
	msgLoggedOut     = "Logged out."
)

type formView struct {
	Message  string
	Username string
	FullName string
}

func (s *Server) showForm(c *gin.Context) {
	if _, err := s.creds.CurrentUser(c.Request.Context(), s.sessionToken(c)); err == nil {
		c.Redirect(http.StatusFound, common.DashboardPath)
		return
	}

	c.HTML(http.StatusOK, "index.html", formView{Message: s.popFlash(c)})
}

func (s *Server) submitForm(c *gin.Context) {
	req := services.FormRequest{
		Intent:   formIntent(c),
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
		FullName: c.PostForm("full_name"),
	}

	res, err := s.creds.Handle(c.Request.Context(), req)
	if err != nil {
		view := formView{Username: req.Username, FullName: req.FullName}
		var f *services.Failure
		if errors.As(err, &f) {
			view.Message = f.Message
		} else {
			s.logger.Error(c.Request.Context(), "form handling failed", "error", err)
			view.Message = services.MsgStoreFailure
		}
		c.HTML(statusFor(err), "index.html", view)
		return
	}

	if res.Token != "" {
		// a fresh login replaces whatever session the browser held
		if prev := s.sessionToken(c); prev != "" {
			if err := s.creds.Logout(c.Request.Context(), prev); err != nil {
				s.logger.Warn(c.Request.Context(), "previous session not revoked", "error", err)
			}
		}
		s.setSessionCookie(c, res.Token)
		c.Redirect(http.StatusSeeOther, res.Redirect)
		return
	}

	c.HTML(http.StatusOK, "index.html", formView{Message: res.Message})
}

func (s *Server) dashboard(c *gin.Context) {
	name, err := s.creds.CurrentUser(c.Request.Context(), s.sessionToken(c))
	if err != nil {
		s.clearSessionCookie(c)
		s.flash(c, msgLoginRequired)
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{"DisplayName": name})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.creds.Logout(c.Request.Context(), s.sessionToken(c)); err != nil {
		s.logger.Warn(c.Request.Context(), "logout failed", "error", err)
	}
	s.clearSessionCookie(c)
	s.flash(c, msgLoggedOut)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			s.logger.Warn(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// formIntent reads the explicit intent field, falling back to the name of
// the submit button ("signup" or "login") used by older pages.
func formIntent(c *gin.Context) services.Intent {
	if intent := c.PostForm("intent"); intent != "" {
		return services.Intent(intent)
	}
	if _, ok := c.GetPostForm("signup"); ok {
		return services.IntentRegister
	}
	if _, ok := c.GetPostForm("login"); ok {
		return services.IntentAuthenticate
	}
	return ""
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sessionToken(c *gin.Context) string {
	token, err := c.Cookie(common.SessionCookieName)
	if err != nil {
		return ""
	}
	return token
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.SessionCookieName, token, int(s.options.SessionTTL.Seconds()), "/", "", s.options.SecureCookies, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.SessionCookieName, "", -1, "/", "", s.options.SecureCookies, true)
}

func (s *Server) flash(c *gin.Context, msg string) {
	session := sessions.Default(c)
	session.AddFlash(msg)
	if err := session.Save(); err != nil {
		s.logger.Warn(c.Request.Context(), "flash save failed", "error", err)
	}
}

// popFlash returns the most recent flash message and clears the queue.
func (s *Server) popFlash(c *gin.Context) string {
	session := sessions.Default(c)
	flashes := session.Flashes()
	if len(flashes) == 0 {
		return ""
	}
	if err := session.Save(); err != nil {
		s.logger.Warn(c.Request.Context(), "flash save failed", "error", err)
	}
	msg, _ := flashes[len(flashes)-1].(string)
	return msg
}
