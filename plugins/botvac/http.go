package botvac

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const httpTimeout = 30 * time.Second

type httpHandler struct {
	manager *Manager
}

// NewHTTPHandler serves the JSON robot API, relative to its mount point.
func NewHTTPHandler(manager *Manager) http.Handler {
	h := &httpHandler{manager: manager}
	r := chi.NewRouter()
	r.Get("/robots", h.listRobots)
	r.Route("/robots/{robot}", func(r chi.Router) {
		r.Get("/", h.getRobot)
		r.Post("/state", h.refreshState)
		r.Post("/commands/{command}", h.command)
		r.Get("/schedule", h.schedule)
		r.Get("/maps", h.persistentMaps)
		r.Get("/maps/{mapID}/boundaries", h.mapBoundaries)
	})
	return r
}

func (h *httpHandler) listRobots(w http.ResponseWriter, _ *http.Request) {
	views := []RobotView{}
	for _, robot := range h.manager.Robots() {
		views = append(views, ViewOf(robot))
	}
	writeJSON(w, http.StatusOK, map[string]any{"robots": views})
}

func (h *httpHandler) getRobot(w http.ResponseWriter, r *http.Request) {
	robot, ok := h.robot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ViewOf(robot))
}

func (h *httpHandler) refreshState(w http.ResponseWriter, r *http.Request) {
	robot, ok := h.robot(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), httpTimeout)
	defer cancel()
	if _, err := robot.GetState(ctx); err != nil {
		writeError(w, mapClientError("get state", err))
		return
	}
	writeJSON(w, http.StatusOK, ViewOf(robot))
}

func (h *httpHandler) command(w http.ResponseWriter, r *http.Request) {
	robot, ok := h.robot(w, r)
	if !ok {
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Robot = robot.Serial()
	req.Command = chi.URLParam(r, "command")

	ctx, cancel := context.WithTimeout(r.Context(), httpTimeout)
	defer cancel()
	if err := Execute(ctx, robot, req); err != nil {
		writeError(w, mapClientError(req.Command, err))
		return
	}
	writeJSON(w, http.StatusOK, ViewOf(robot))
}

func (h *httpHandler) schedule(w http.ResponseWriter, r *http.Request) {
	robot, ok := h.robot(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), httpTimeout)
	defer cancel()
	schedule, err := scheduleOf(ctx, robot)
	if err != nil {
		writeError(w, mapClientError("get schedule", err))
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (h *httpHandler) persistentMaps(w http.ResponseWriter, r *http.Request) {
	robot, ok := h.robot(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), httpTimeout)
	defer cancel()
	maps, err := robot.GetPersistentMaps(ctx)
	if err != nil {
		writeError(w, mapClientError("get persistent maps", err))
		return
	}
	if maps == nil {
		maps = []PersistentMap{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"maps": maps})
}

func (h *httpHandler) mapBoundaries(w http.ResponseWriter, r *http.Request) {
	robot, ok := h.robot(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), httpTimeout)
	defer cancel()
	boundaries, err := robot.GetMapBoundaries(ctx, chi.URLParam(r, "mapID"))
	if err != nil {
		writeError(w, mapClientError("get map boundaries", err))
		return
	}
	writeJSON(w, http.StatusOK, boundaries)
}

func (h *httpHandler) robot(w http.ResponseWriter, r *http.Request) (*Robot, bool) {
	robot, err := h.manager.Robot(chi.URLParam(r, "robot"))
	if err != nil {
		writeError(w, mapClientError("find robot", err))
		return nil, false
	}
	return robot, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	writeJSON(w, httpStatus(st.Code()), map[string]string{"error": st.Message()})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
