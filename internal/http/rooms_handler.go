package httpapi

import (
	"errors"
	"net/http"

	"roomdesk/internal/domain"
	"roomdesk/internal/filter"
	"roomdesk/internal/mutation"
	"roomdesk/internal/roomapi"
	"roomdesk/internal/service"

	"go.uber.org/zap"
)

// RoomsHandler 房间页 HTTP 入口，全部委托给 service.RoomsPage
type RoomsHandler struct {
	page   *service.RoomsPage
	logger *zap.Logger
}

func NewRoomsHandler(page *service.RoomsPage, logger *zap.Logger) *RoomsHandler {
	return &RoomsHandler{page: page, logger: logger}
}

// List GET /api/v1/rooms
// 带 search/type/status 参数时替换当前筛选条件，否则沿用会话里的条件。
// 一个进程只有一个 RoomsPage 会话，筛选条件对所有客户端共享；
// 需要固定视图的客户端应始终携带参数（type=all&status=all 回到默认视图）。
func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.view(r)
	if err != nil {
		writeJSON(w, errorStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// Get GET /api/v1/rooms/{id}
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	room, err := h.page.Room(r.Context(), id)
	if err != nil {
		writeJSON(w, errorStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(room))
}

// Create POST /api/v1/rooms
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateRoomData
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	ev, err := h.page.Create.Submit(r.Context(), in)
	h.writeOutcome(w, http.StatusCreated, ev, err)
}

// Update PUT /api/v1/rooms/{id}
// body 是完整的可写字段，id 以路径为准
func (h *RoomsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	var in domain.CreateRoomData
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	ev, err := h.page.Update.Submit(r.Context(), domain.UpdateRoomData{ID: id, CreateRoomData: in})
	h.writeOutcome(w, http.StatusOK, ev, err)
}

// Delete DELETE /api/v1/rooms/{id}
func (h *RoomsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	ev, err := h.page.Delete.Submit(r.Context(), id)
	h.writeOutcome(w, http.StatusOK, ev, err)
}

// Export GET /api/v1/rooms/export
func (h *RoomsHandler) Export(w http.ResponseWriter, r *http.Request) {
	view, err := h.view(r)
	if err != nil {
		writeJSON(w, errorStatus(err), Fail(err.Error()))
		return
	}
	data, err := GenerateRoomsExport(view.Rooms)
	if err != nil {
		h.logger.Error("GenerateRoomsExport failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=rooms-export.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *RoomsHandler) view(r *http.Request) (service.PageView, error) {
	q := r.URL.Query()
	if q.Has("search") || q.Has("type") || q.Has("status") {
		return h.page.Apply(r.Context(), filter.FromQuery(q))
	}
	return h.page.View(r.Context())
}

func (h *RoomsHandler) writeOutcome(w http.ResponseWriter, okStatus int, ev mutation.Event, err error) {
	if err != nil {
		writeJSON(w, errorStatus(err), Fail(ev.Message))
		return
	}
	writeJSON(w, okStatus, OkMessage(ev.Message, ev))
}

// errorStatus 错误到 HTTP 状态码：
// 校验失败 400；控制器忙 409；上游 4xx 原样透传；其余上游失败 502
func errorStatus(err error) int {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	if errors.Is(err, mutation.ErrBusy) {
		return http.StatusConflict
	}
	var fe *roomapi.FetchError
	if errors.As(err, &fe) {
		return upstreamStatus(fe.StatusCode)
	}
	var ae *roomapi.APIError
	if errors.As(err, &ae) {
		return upstreamStatus(ae.StatusCode)
	}
	return http.StatusInternalServerError
}

func upstreamStatus(code int) int {
	if code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}
