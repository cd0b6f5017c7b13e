package server

import (
	"log"
	"sync"
	"time"

	"relaychat/models"
	"relaychat/msglog"
)

// Router is the single dispatch point for every inbound message. Chat
// messages get a server timestamp, are appended to the log and fanned out
// to the connected recipients' queues; presence announcements drive the
// join/leave flow and the broadcast of the online snapshot.
//
// Presence transitions are serialized under presenceMu so two concurrent
// joins or leaves cannot interleave their snapshot broadcasts. Chat
// dispatch does not take that lock: the log serializes its own appends
// and each recipient's queue is privately owned by its session.
type Router struct {
	registry *Registry
	log      *msglog.Log

	presenceMu sync.Mutex

	// now stamps server timestamps; replaceable in tests.
	now func() time.Time
}

func NewRouter(registry *Registry, messageLog *msglog.Log) *Router {
	return &Router{
		registry: registry,
		log:      messageLog,
		now:      time.Now,
	}
}

// Dispatch routes one inbound message from the session that decoded it.
func (rt *Router) Dispatch(from *Session, msg models.Message) {
	switch m := msg.(type) {
	case *models.ChatMessage:
		rt.dispatchChat(from, m)
	case *models.PresenceUpdate:
		if m.User.Connected {
			rt.Join(from)
		} else {
			rt.Leave(from)
		}
	}
}

// dispatchChat stamps the message with the wall clock at receipt, appends
// it to the log, then enqueues it on every connected recipient except the
// sender and finally echoes it back to the sender so their UI renders the
// authoritative server timestamp. Recipients that are offline miss the
// message; there is no mailbox.
func (rt *Router) dispatchChat(from *Session, msg *models.ChatMessage) {
	msg.ServerTime = models.FormatTime(rt.now())

	if err := rt.log.Append(*msg); err != nil {
		// The record is lost; delivery still proceeds.
		log.Printf("Failed to persist message %s from %s: %v", msg.ID, msg.Sender.Name, err)
	}

	seen := make(map[string]bool, len(msg.Receivers))
	for _, name := range msg.Receivers {
		if name == msg.Sender.Name || seen[name] {
			continue
		}
		seen[name] = true
		if sess, ok := rt.registry.Get(name); ok {
			sess.enqueue(msg)
		}
	}

	if sender, ok := rt.registry.Get(msg.Sender.Name); ok {
		sender.enqueue(msg)
	} else {
		from.enqueue(msg)
	}
}

// Join registers sess as the active session for its identity. A stale
// session for the same identity is replaced: its undelivered messages are
// flushed onto the new session's queue before its connection is
// discarded. Everyone connected, the newcomer included, gets a presence
// update carrying the online snapshot.
func (rt *Router) Join(sess *Session) {
	rt.presenceMu.Lock()
	defer rt.presenceMu.Unlock()

	old, targets, online := rt.registry.Connect(sess)
	if old != nil && old != sess {
		for _, pending := range old.takeover() {
			sess.enqueue(pending)
		}
		old.close()
		log.Printf("Client %s reconnected, replaced stale session", sess.user.Name)
	}

	rt.broadcast(targets, &models.PresenceUpdate{
		User:   models.User{Name: sess.user.Name, Avatar: sess.user.Avatar, Connected: true},
		Online: online,
	})
}

// Leave marks sess's identity offline and tells everyone still connected.
// The registry entry stays so a reconnect can recover the stashed queue.
// Calling Leave on a session that was already replaced or already left is
// a no-op.
func (rt *Router) Leave(sess *Session) {
	rt.presenceMu.Lock()
	defer rt.presenceMu.Unlock()

	targets, online, ok := rt.registry.Disconnect(sess)
	if !ok {
		sess.close()
		return
	}
	sess.retire()
	log.Printf("Client %s disconnected", sess.user.Name)

	rt.broadcast(targets, &models.PresenceUpdate{
		User:   models.User{Name: sess.user.Name, Avatar: sess.user.Avatar, Connected: false},
		Online: online,
	})
}

func (rt *Router) broadcast(targets []*Session, update *models.PresenceUpdate) {
	for _, t := range targets {
		t.enqueue(update)
	}
}
