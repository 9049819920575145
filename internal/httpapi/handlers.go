package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/hub"
	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/internal/store"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *room.Room, 1)
			h.Inbox() <- hub.GetRoom{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("room", c))
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{Code: code, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: chi.URLParam(r, "code"), Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		snap := make(chan types.RoomSnapshot, 1)
		select {
		case rm.Inbox() <- room.GetState{Reply: snap}:
		case <-rm.Done():
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		select {
		case s := <-snap:
			writeJSON(w, http.StatusOK, s)
		case <-rm.Done():
			http.Error(w, "room not found", http.StatusNotFound)
		case <-time.After(2 * time.Second):
			http.Error(w, "room busy", http.StatusServiceUnavailable)
		}
	}
}

type recordRow struct {
	Name   string  `json:"name"`
	Score  int     `json:"score"`
	Record float64 `json:"record"`
}

// TopRecords lists the longest throws on file.
func TopRecords(records store.ResultStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if records == nil {
			http.Error(w, store.ErrNotConfigured.Error(), http.StatusServiceUnavailable)
			return
		}
		limit := 10
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 100 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		top, err := records.TopRecords(r.Context(), limit)
		if err != nil {
			if errors.Is(err, store.ErrNotConfigured) {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			log.Error("top records", zap.Error(err))
			http.Error(w, "failed to load records", http.StatusInternalServerError)
			return
		}
		rows := make([]recordRow, 0, len(top))
		for _, res := range top {
			rows = append(rows, recordRow{Name: res.Name, Score: res.Score, Record: res.Record})
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
