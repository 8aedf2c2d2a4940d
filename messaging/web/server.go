// Package web is the HTTP surface of the follow engine: a JSON directory view, the follow
// actions, and the callback address the external signer app returns to.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Crackloss/nostrweb/engine/follow"
	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/npub"
	"github.com/Crackloss/nostrweb/messaging/signer"
	"github.com/Crackloss/nostrweb/state/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	CookieName   = "nostrweb_session"
	CallbackPath = "/callback"
)

type Config struct {
	Follow    follow.Config
	Directory []string
	// PublicURL is the externally visible base address, used to build the callback.
	PublicURL string
}

// CallbackURL is the address external signers are told to reopen.
func CallbackURL(publicURL string) string {
	return strings.TrimRight(publicURL, "/") + CallbackPath
}

type Server struct {
	config     Config
	base       *url.URL
	relays     follow.Relays
	store      session.Store
	handshakes signer.Factory
	router     chi.Router
}

func NewServer(config Config, relays follow.Relays, store session.Store, handshakes signer.Factory) (*Server, error) {
	base, err := url.Parse(strings.TrimRight(config.PublicURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid public url: %w", err)
	}
	s := &Server{
		config:     config,
		base:       base,
		relays:     relays,
		store:      store,
		handshakes: handshakes,
		router:     chi.NewRouter(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/api/directory", s.handleDirectory)
	s.router.Post("/api/connect", s.handleConnect)
	s.router.Post("/api/follow/{id}", s.handleFollow)
	s.router.Post("/api/disconnect", s.handleDisconnect)
	s.router.Get(CallbackPath, s.handleCallback)
}

// engine binds a fresh engine to the caller's session, creating the session if needed.
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*follow.Engine, error) {
	id := ""
	if c, err := r.Cookie(CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.base.Scheme == "https",
			SameSite: http.SameSiteLaxMode,
		})
	}
	store := session.Prefixed(s.store, "session:"+id+":")
	e := follow.New(s.config.Follow, s.relays, store, s.handshakes(store))
	if err := e.Restore(r.Context()); err != nil {
		return nil, err
	}
	return e, nil
}

type entry struct {
	ID    string             `json:"id"`
	State follow.RenderState `json:"state"`
}

type listing struct {
	candidates []string
	Identity   string  `json:"identity,omitempty"`
	Npub       string  `json:"npub,omitempty"`
	Mode       string  `json:"mode"`
	Notice     string  `json:"notice,omitempty"`
	Entries    []entry `json:"entries"`
}

func (l *listing) Candidates() []string { return l.candidates }

func (l *listing) Render(id string, state follow.RenderState) {
	l.Entries = append(l.Entries, entry{ID: id, State: state})
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	e, err := s.engine(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("refresh") != "" {
		if err := e.Refresh(r.Context()); err != nil && !errors.Is(err, library.ErrNotConnected) {
			library.LogCLI(err, 2)
		}
	}
	s.writeDirectory(w, r, e)
}

func (s *Server) writeDirectory(w http.ResponseWriter, r *http.Request, e *follow.Engine) {
	view := &listing{candidates: s.config.Directory, Mode: string(e.Mode()), Entries: []entry{}}
	if id, ok := e.Identity(); ok {
		view.Identity = id
		view.Npub, _ = npub.Encode(id)
	}
	view.Notice = e.TakeNotice(r.Context())
	e.Render(r.Context(), view)
	writeJSON(w, http.StatusOK, view)
}

type stepResponse struct {
	Redirect string `json:"redirect,omitempty"`
	Identity string `json:"identity,omitempty"`
	State    string `json:"state,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	e, err := s.engine(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	step, err := e.Connect(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{Redirect: step.Redirect, Identity: step.PubKey})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	e, err := s.engine(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	step, err := e.Follow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if step.Suspended() {
		writeJSON(w, http.StatusOK, stepResponse{Redirect: step.Redirect})
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{State: string(follow.Following)})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	e, err := s.engine(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := e.Disconnect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCallback consumes a signer result and sends the browser to the address without it,
// so a reload cannot replay the result. Without a result it serves the directory.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	e, err := s.engine(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	u := *s.base
	u.Path = strings.TrimRight(s.base.Path, "/") + r.URL.Path
	u.RawQuery = r.URL.RawQuery
	res, err := e.Resume(r.Context(), &u)
	if err != nil {
		library.LogCLI(fmt.Sprintf("signer callback: %s", err), 2)
	}
	if res.Kind == signer.NoResult || res.Kind == signer.AbandonedResult {
		s.writeDirectory(w, r, e)
		return
	}
	http.Redirect(w, r, res.CleanURL, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		library.LogCLI(err, 3)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, library.ErrNotConnected):
		status = http.StatusUnauthorized
	case errors.Is(err, library.ErrInvalidIdentifier):
		status = http.StatusBadRequest
	case errors.Is(err, library.ErrSignerDenied):
		status = http.StatusForbidden
	case errors.Is(err, library.ErrSignerPayloadUnrecognized):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, library.ErrPublishQuorumFailed):
		status = http.StatusBadGateway
	case errors.Is(err, library.ErrSignerUnavailable):
		status = http.StatusServiceUnavailable
	default:
		library.LogCLI(err, 1)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
