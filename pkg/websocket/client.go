package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var errSessionClosed = errors.New("session closed")

// Dispatcher receives inbound frames decoded from a client connection. The
// chat service implements it; every callback routes through the
// conversation's actor.
type Dispatcher interface {
	OnMessage(s Session, receiverID primitive.ObjectID, content string, contentType string)
	OnTyping(s Session, isTyping bool)
	OnRead(s Session, messageID primitive.ObjectID)
	OnClose(s Session)
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type inboundMessage struct {
	Content     string `json:"content"`
	ReceiverID  string `json:"receiverId"`
	ContentType string `json:"contentType"`
}

type inboundTyping struct {
	IsTyping bool `json:"isTyping"`
}

type inboundRead struct {
	MessageID string `json:"messageId"`
}

// Client is one websocket connection bound to a user. It implements Session.
type Client struct {
	conn       *websocket.Conn
	dispatcher Dispatcher
	send       chan []byte
	done       chan struct{}
	userID     primitive.ObjectID
	userName   string
}

func NewClient(conn *websocket.Conn, dispatcher Dispatcher, userID primitive.ObjectID, userName string) *Client {
	return &Client{
		conn:       conn,
		dispatcher: dispatcher,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		userID:     userID,
		userName:   userName,
	}
}

func (c *Client) UserID() primitive.ObjectID {
	return c.userID
}

func (c *Client) UserName() string {
	return c.userName
}

// Push queues an outbound frame without blocking. A full buffer means the
// consumer is too slow to keep up and the session is reported dead.
func (c *Client) Push(data []byte) error {
	select {
	case <-c.done:
		return errSessionClosed
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// Run starts the read and write pumps and blocks until the connection is
// gone. The dispatcher's OnClose fires exactly once, after the read side
// ends.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.dispatcher.OnClose(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			break
		}

		c.handleFrame(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("websocket frame decode error: %v", err)
		return
	}

	switch frame.Type {
	case "message":
		var data inboundMessage
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		receiverID, err := primitive.ObjectIDFromHex(data.ReceiverID)
		if err != nil || data.Content == "" {
			return
		}
		if data.ContentType == "" {
			data.ContentType = "text"
		}
		c.dispatcher.OnMessage(c, receiverID, data.Content, data.ContentType)

	case "typing":
		var data inboundTyping
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		c.dispatcher.OnTyping(c, data.IsTyping)

	case "read":
		var data inboundRead
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		messageID, err := primitive.ObjectIDFromHex(data.MessageID)
		if err != nil {
			return
		}
		c.dispatcher.OnRead(c, messageID)

	default:
		log.Printf("unknown websocket frame type: %s", frame.Type)
	}
}
