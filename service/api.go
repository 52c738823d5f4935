package service

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/xerrors"

	"arcade/lobby"
	"arcade/log"
)

func (s *ArcadeService) serveMain(ctx context.Context) <-chan error {
	errCh := make(chan error)

	go func() {
		laddr := fmt.Sprintf(":%d", s.conf.Port)
		log.Infof("arcade server: %#v", laddr)

		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", laddr)
		if err != nil {
			errCh <- xerrors.Errorf("listen failed: %w", err)
			return
		}

		if cert, key := s.conf.TLSCert, s.conf.TLSKey; cert != "" {
			log.Infof("loading tls key: %#v", cert)
			cert, err := tls.LoadX509KeyPair(cert, key)
			if err != nil {
				errCh <- xerrors.Errorf("x509 load error: %w", err)
				return
			}
			tlsConf := &tls.Config{
				Certificates: []tls.Certificate{cert},
			}
			listener = tls.NewListener(listener, tlsConf)
		}

		r := mux.NewRouter()
		s.registerRoutes(r)

		svr := &http.Server{
			Handler: r,
		}
		errCh <- svr.Serve(listener)
	}()

	return errCh
}

func (s *ArcadeService) registerRoutes(r *mux.Router) {
	r.HandleFunc("/health", handleHealth).Methods("GET")
	r.HandleFunc("/health/", handleHealth).Methods("GET")

	r.HandleFunc("/ws", s.handleWS)

	r.HandleFunc("/games", s.handleGames).Methods("GET")
	r.HandleFunc("/leaderboard/{gameId}", s.handleTopScores).Methods("GET")
	r.HandleFunc("/leaderboard", s.handleRecordScore).Methods("POST")
	r.HandleFunc("/nominations", s.handleNominations).Methods("GET")
	r.HandleFunc("/nominations/{id:[0-9]+}/vote", s.handleCastVote).Methods("POST")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("arcade works\n"))
}

// renderJSON / renderError : RESTレスポンスは常にJSON.
// lobby.ErrorWithTypeのMessage()だけをクライアントに見せる.
func renderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("response encode: %+v", err)
	}
}

func renderError(w http.ResponseWriter, err error) {
	var ewt lobby.ErrorWithType
	if !errors.As(err, &ewt) {
		log.Errorf("api error: %+v", err)
		renderJSON(w, http.StatusInternalServerError,
			map[string]string{"error": "Internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch ewt.ErrType() {
	case lobby.ErrArgument:
		status = http.StatusBadRequest
	case lobby.ErrNotFound:
		status = http.StatusNotFound
	case lobby.ErrDuplicateVote:
		status = http.StatusConflict
	}
	log.Debugf("api error: status=%v %+v", status, err)
	renderJSON(w, status, map[string]string{"error": ewt.Message()})
}

func (s *ArcadeService) handleGames(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]interface{}{"games": lobby.Games()})
}

func (s *ArcadeService) handleTopScores(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]
	limit := 0
	if p := r.URL.Query().Get("limit"); p != "" {
		limit, _ = strconv.Atoi(p)
	}

	entries, err := s.store.TopScores(r.Context(), gameID, limit)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"scores": entries})
}

type recordScoreParam struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

func (s *ArcadeService) handleRecordScore(w http.ResponseWriter, r *http.Request) {
	var param recordScoreParam
	if err := json.NewDecoder(r.Body).Decode(&param); err != nil {
		renderJSON(w, http.StatusBadRequest,
			map[string]string{"error": "Invalid request body"})
		return
	}

	entry, err := s.store.RecordScore(r.Context(), param.GameID, param.PlayerName, param.Score)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, entry)
}

func (s *ArcadeService) handleNominations(w http.ResponseWriter, r *http.Request) {
	noms, err := s.store.Nominations(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"nominations": noms})
}

func (s *ArcadeService) handleCastVote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid id"})
		return
	}

	if err := s.store.CastVote(r.Context(), id, voterIP(r)); err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// voterIP : 投票の重複判定に使うIP. プロキシ背後を考慮して
// X-Forwarded-Forの先頭を優先する.
func voterIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
