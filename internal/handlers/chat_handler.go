package handlers

import (
	"strconv"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/services"
	"ridepool/internal/utils"
	ws "ridepool/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// GetConversations lists the authenticated user's conversations, most
// recently active first
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	conversations, err := h.chatService.Conversations(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Conversations retrieved successfully", conversations)
}

// GetMessages returns a page of conversation history in ascending order.
// The before query parameter pages further back in time; before_id pages
// precisely from a message id.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversationId")

	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(utils.DefaultHistoryLimit)))

	before := time.Now()
	if raw := c.Query("before"); raw != "" {
		parsed, err := parseBefore(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid before timestamp")
			return
		}
		before = parsed
	}

	beforeID := primitive.NilObjectID
	if raw := c.Query("before_id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid before_id")
			return
		}
		beforeID = id
	}

	messages, err := h.chatService.History(c.Request.Context(), conversationID, userID, limit, before, beforeID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Messages retrieved successfully", messages)
}

// parseBefore accepts the unix-seconds form the server itself broadcasts in
// createdAt, so clients can echo it straight back, with RFC3339 as a
// fallback.
func parseBefore(raw string) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, raw)
}

// HandleWebSocket upgrades the connection and attaches it to the
// conversation's room. The other participant's id forms the conversation id
// together with the caller's.
func (h *ChatHandler) HandleWebSocket(c *gin.Context) {
	otherID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID")
		return
	}

	userID, userName, ok := currentUser(c)
	if !ok {
		return
	}
	if otherID == userID {
		utils.BadRequestResponse(c, "Cannot open a conversation with yourself")
		return
	}

	conversationID := models.ConversationID(userID, otherID)

	conn, err := ws.Upgrade(c)
	if err != nil {
		return
	}

	client := ws.NewClient(conn, h.chatService.Dispatcher(conversationID), userID, userName)

	if err := h.chatService.Join(c.Request.Context(), conversationID, client); err != nil {
		client.Close()
		return
	}

	client.Run()
}
