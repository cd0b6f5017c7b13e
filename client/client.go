// Package client is the engine behind the chat UI: it dials the relay,
// announces the identity, and exposes sendText/addFriend/disconnect plus
// a channel of delivered messages and presence events for the UI to
// render. Everything visual lives elsewhere.
package client

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/db"
	"relaychat/models"
	"relaychat/protocol"
)

var (
	ErrEmptyMessage    = errors.New("cannot send a message with no text and no image")
	ErrSelfFriend      = errors.New("you cannot add yourself as a friend")
	ErrDuplicateFriend = errors.New("friend is already on your list")
)

type Client struct {
	mu     sync.Mutex
	user   models.User
	conn   net.Conn
	writer *protocol.Writer
	store  *db.DB
	online map[string]models.User
	events chan models.Message
	closed bool
}

// Dial connects to the relay at addr and announces the identity. If store
// holds a saved profile for name, its friend list and avatar are restored
// and sent with the announcement, so a reconnecting client shows up with
// its local state intact. store may be nil for a stateless client.
func Dial(addr, name, avatarPath string, store *db.DB) (*Client, error) {
	if name == "" {
		return nil, errors.New("username required")
	}

	user := models.User{Name: name, Avatar: avatarPath, Connected: true}
	if store != nil {
		saved, err := store.LoadProfile(name)
		switch {
		case err == nil:
			user.Friends = saved.Friends
			if user.Avatar == "" {
				user.Avatar = saved.Avatar
			}
		case errors.Is(err, db.ErrNoRows):
			// first run for this username
		default:
			return nil, fmt.Errorf("load profile: %w", err)
		}
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		user:   user,
		conn:   conn,
		writer: protocol.NewWriter(conn),
		store:  store,
		events: make(chan models.Message, 64),
	}

	if err := c.writer.Write(&models.PresenceUpdate{User: user}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("announce identity: %w", err)
	}

	go c.readLoop()
	return c, nil
}

// Events delivers inbound chat messages and presence updates in arrival
// order. The channel closes when the connection does. The consumer must
// keep draining the channel (or call Disconnect) for the lifetime of the
// client: once the buffer fills, the read loop blocks until the next
// receive.
func (c *Client) Events() <-chan models.Message {
	return c.events
}

// User returns a copy of the local identity.
func (c *Client) User() models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	user := c.user
	user.Friends = append([]string(nil), c.user.Friends...)
	return user
}

// Online returns the latest presence snapshot received from the server.
func (c *Client) Online() map[string]models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	online := make(map[string]models.User, len(c.online))
	for name, user := range c.online {
		online[name] = user
	}
	return online
}

// SendText sends a message to recipients. imagePath may be empty; when
// set, the file is read and shipped inline. A message with neither text
// nor image is rejected before anything goes on the wire.
func (c *Client) SendText(recipients []string, text, imagePath string) error {
	if text == "" && imagePath == "" {
		return ErrEmptyMessage
	}

	var image []byte
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		image = data
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Image:     image,
		Sender:    models.User{Name: c.user.Name, Avatar: c.user.Avatar, Connected: true},
		Receivers: recipients,
	}
	return c.writer.Write(msg)
}

// AddFriend records name on the local friend list. Adding yourself or a
// name already on the list is rejected with a descriptive error; nothing
// is sent to the server.
func (c *Client) AddFriend(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == c.user.Name {
		return ErrSelfFriend
	}
	for _, friend := range c.user.Friends {
		if friend == name {
			return ErrDuplicateFriend
		}
	}

	c.user.Friends = append(c.user.Friends, name)
	if c.store != nil {
		if err := c.store.AddFriend(c.user.Name, name); err != nil {
			return fmt.Errorf("save friend: %w", err)
		}
	}
	return nil
}

// Disconnect announces connected=false, saves the profile and closes the
// connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.user.Connected = false
	announce := models.User{Name: c.user.Name, Avatar: c.user.Avatar, Connected: false}
	if err := c.writer.Write(&models.PresenceUpdate{User: announce}); err != nil {
		log.Printf("Error announcing disconnect: %v", err)
	}

	if c.store != nil {
		if err := c.store.SaveProfile(c.user); err != nil {
			log.Printf("Error saving profile for %s: %v", c.user.Name, err)
		}
	}

	return c.conn.Close()
}

// readLoop stamps inbound chat messages with the client wall clock,
// tracks the online snapshot and forwards everything to the events
// channel. It exits, closing the channel, when the connection drops.
func (c *Client) readLoop() {
	reader := protocol.NewReader(c.conn)
	for {
		msg, err := reader.Read()
		if err != nil {
			close(c.events)
			return
		}

		switch m := msg.(type) {
		case *models.ChatMessage:
			m.ClientTime = models.FormatTime(time.Now())
		case *models.PresenceUpdate:
			c.mu.Lock()
			c.online = m.Online
			c.mu.Unlock()
		}

		c.events <- msg
	}
}
