package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/micro-nova/modcfg/internal/events"
)

// ConfigView is the whole configuration array.
type ConfigView struct {
	Base  int   `json:"base"`
	Size  int   `json:"size"`
	Bytes []int `json:"bytes"`
}

// ByteView is a single configuration byte.
type ByteView struct {
	Index int `json:"index"`
	Value int `json:"value"`
}

// ByteUpdate is the body of PUT /api/config/{index}. Value is a pointer so a
// missing field is told apart from zero.
type ByteUpdate struct {
	Value *int `json:"value"`
}

func (h *Handlers) configView() ConfigView {
	raw := h.store.Bytes()
	vals := make([]int, len(raw))
	for i, b := range raw {
		vals[i] = int(b)
	}
	return ConfigView{Base: h.store.Base(), Size: len(raw), Bytes: vals}
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.configView())
}

// indexParam reads {index} and checks it addresses a configuration byte.
func (h *Handlers) indexParam(r *http.Request) (int, error) {
	idx, err := intParam(r, "index")
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= h.store.Size() {
		return 0, ErrNotFound(fmt.Sprintf("no configuration byte %d (size %d)", idx, h.store.Size()))
	}
	return idx, nil
}

func (h *Handlers) getByte(w http.ResponseWriter, r *http.Request) {
	idx, err := h.indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ByteView{Index: idx, Value: int(h.store.GetByte(idx))})
}

func (h *Handlers) setByte(w http.ResponseWriter, r *http.Request) {
	idx, err := h.indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var upd ByteUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, ErrBadRequest("", "invalid JSON: "+err.Error()))
		return
	}
	if upd.Value == nil {
		writeError(w, ErrBadRequest("value", "value is required"))
		return
	}
	v := *upd.Value
	if v < 0 || v > 0xFF {
		writeError(w, ErrBadRequest("value", fmt.Sprintf("value %d does not fit a byte", v)))
		return
	}

	ok, err := h.store.SetByte(r.Context(), idx, byte(v))
	if !ok {
		writeError(w, ErrRejected(fmt.Sprintf("value %d rejected for index %d", v, idx)))
		return
	}
	if err != nil {
		slog.Error("api: configuration byte not persisted", "index", idx, "value", v, "err", err)
		writeError(w, ErrInternal("value accepted but not persisted: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, ByteView{Index: idx, Value: v})
}

func (h *Handlers) saveConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Save(r.Context()); err != nil {
		writeError(w, ErrInternal(err.Error()))
		return
	}
	h.reloaded("save")
	writeJSON(w, http.StatusOK, h.configView())
}

func (h *Handlers) loadConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Load(r.Context()); err != nil {
		writeError(w, ErrInternal(err.Error()))
		return
	}
	h.reloaded("load")
	writeJSON(w, http.StatusOK, h.configView())
}

func (h *Handlers) eraseConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Erase(r.Context()); err != nil {
		writeError(w, ErrInternal(err.Error()))
		return
	}
	h.reloaded("erase")
	writeJSON(w, http.StatusOK, h.configView())
}

func (h *Handlers) reloaded(action string) {
	if h.events != nil {
		h.events.Publish(events.Notification{Type: events.TypeReload, Action: action})
	}
}
