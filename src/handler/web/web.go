// Package web wires the HTTP surface: the companion websocket endpoint and
// a health probe.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"syncopate/src/auth"
	"syncopate/src/router"
	"syncopate/src/session"
	"syncopate/src/util"
	"syncopate/src/voice"
)

type webService struct {
	router   *router.Router
	authn    auth.Authenticator
	members  voice.Source
	cfg      session.Config
	upgrader websocket.Upgrader
}

// New builds the HTTP service.
func New(rt *router.Router, authn auth.Authenticator, members voice.Source, cfg session.Config) chi.Router {
	web := &webService{
		router:  rt,
		authn:   authn,
		members: members,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 12,
			WriteBufferSize: 1 << 12,
			// Companion clients are native apps, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	service := chi.NewRouter()
	service.Use(util.LogHandler)
	service.Get("/companion", web.serveCompanion)
	service.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return service
}

func (web *webService) serveCompanion(w http.ResponseWriter, r *http.Request) {
	conn, err := web.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	log.Debugf("Companion connected: %s", r.RemoteAddr)
	sess := session.New(conn, web.authn, web.members, web.router, web.cfg)
	sess.Run(r.Context())
	log.Debugf("Companion disconnected: %s", r.RemoteAddr)
}
