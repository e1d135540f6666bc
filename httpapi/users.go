package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/billbatista/acasinha-pots/eventlogger"
	"github.com/billbatista/acasinha-pots/middleware"
	"github.com/billbatista/acasinha-pots/session"
	"github.com/billbatista/acasinha-pots/user"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *user.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	registeredUser, err := s.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, ok := s.startSession(w, r, registeredUser)
	if !ok {
		return
	}

	s.log(eventlogger.NewEvent(
		eventlogger.WithType("user.registered"),
		eventlogger.WithActor(registeredUser.ID),
		eventlogger.WithData(map[string]string{
			"user_id":    registeredUser.ID.String(),
			"email":      registeredUser.Email,
			"session_id": sess.ID.String(),
		}),
	))

	s.writeAuth(w, http.StatusCreated, registeredUser)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	userdb, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Code: user.ErrInvalidCredentials.Code, Message: user.ErrInvalidCredentials.Message})
			return
		}
		writeError(w, err)
		return
	}

	sess, ok := s.startSession(w, r, userdb)
	if !ok {
		return
	}

	s.log(eventlogger.NewEvent(
		eventlogger.WithType("user.logged_in"),
		eventlogger.WithActor(userdb.ID),
		eventlogger.WithData(map[string]string{
			"user_id":    userdb.ID.String(),
			"email":      userdb.Email,
			"session_id": sess.ID.String(),
		}),
	))

	s.writeAuth(w, http.StatusOK, userdb)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err == nil {
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   session.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	u, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) updateName(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.users.UpdateName(r.Context(), userID, req.Name); err != nil {
		writeError(w, err)
		return
	}

	s.log(eventlogger.NewEvent(
		eventlogger.WithType("user.name_updated"),
		eventlogger.WithActor(userID),
		eventlogger.WithData(map[string]string{
			"user_id": userID.String(),
			"name":    req.Name,
		}),
	))
	s.me(w, r)
}

type avatarRequest struct {
	AvatarURL string `json:"avatar_url"`
}

func (s *Server) updateAvatar(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req avatarRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.users.UpdateAvatar(r.Context(), userID, req.AvatarURL); err != nil {
		writeError(w, err)
		return
	}

	s.log(eventlogger.NewEvent(
		eventlogger.WithType("user.avatar_updated"),
		eventlogger.WithActor(userID),
		eventlogger.WithData(map[string]string{
			"user_id":    userID.String(),
			"avatar_url": req.AvatarURL,
		}),
	))
	s.me(w, r)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u *user.User) (*session.Session, bool) {
	sess, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		writeError(w, err)
		return nil, false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, true
}

func (s *Server) writeAuth(w http.ResponseWriter, status int, u *user.User) {
	resp := authResponse{User: u}
	if s.tokens != nil {
		token, err := s.tokens.Issue(u.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Token = token
	}
	writeJSON(w, status, resp)
}
