package chat

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/module/chat/model"
	chatsvc "PPChat/service/chat"
	"PPChat/tools/errs"
	"PPChat/tools/resp"

	"github.com/gin-gonic/gin"
)

type chatService interface {
	SendMessage(ctx context.Context, senderID, receiverID model.UserID, content string) (chatsvc.SendResult, error)
	History(ctx context.Context, requesterID, peerID model.UserID, page, limit int) (model.HistoryPage, error)
	Presence(ctx context.Context, userID model.UserID) (model.PresenceStatus, error)
}

// Handler HTTP 入口，发送方/查询方一律取自 token。
type Handler struct {
	svc chatService
}

func NewHandler(svc chatService) *Handler {
	return &Handler{svc: svc}
}

// Register 挂载 /chat 路由，全部需要鉴权
func (h *Handler) Register(rt *middleware.Router) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.POST("/chat/send-message", h.SendMessage, auth)
	rt.GET("/chat/chat-history/:id", h.ChatHistory, auth)
	rt.GET("/chat/presence/:id", h.Presence, auth)
}

func (h *Handler) SendMessage(c *gin.Context) {
	userID, ok := midsec.UserID(c)
	if !ok {
		resp.Fail(c, errs.ErrUnauthenticated)
		return
	}
	var body chatsvc.SendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg("invalid body: "+err.Error()))
		return
	}
	res, err := h.svc.SendMessage(c.Request.Context(), userID, body.ReceiverID, body.Content)
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, http.StatusCreated, "Message successfully sent", res)
}

func (h *Handler) ChatHistory(c *gin.Context) {
	userID, ok := midsec.UserID(c)
	if !ok {
		resp.Fail(c, errs.ErrUnauthenticated)
		return
	}
	page, err := queryInt(c, "page")
	if err != nil {
		resp.Fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		resp.Fail(c, err)
		return
	}
	hp, err := h.svc.History(c.Request.Context(), userID, c.Param("id"), page, limit)
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OKWithMeta(c, "Chat history retrieved successfully", hp.Meta, hp.Items)
}

func (h *Handler) Presence(c *gin.Context) {
	st, err := h.svc.Presence(c.Request.Context(), c.Param("id"))
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, http.StatusOK, "Presence retrieved successfully", st)
}

// queryInt 缺省返回 0，交给 service 取默认值；显式给出的值必须 >= 1
func queryInt(c *gin.Context, key string) (int, error) {
	raw, ok := c.GetQuery(key)
	raw = strings.TrimSpace(raw)
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.ErrArgs.WrapMsg(key+" must be an integer", key, raw)
	}
	if n < 1 {
		return 0, errs.ErrArgs.WrapMsg(key+" must not be less than 1", key, raw)
	}
	return n, nil
}
