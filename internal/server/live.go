package server

import (
	"github.com/gofiber/contrib/websocket"

	"taskdeck/internal/identity"
	"taskdeck/internal/scheduler"
	"taskdeck/internal/task"
	"taskdeck/internal/view"
)

// liveMessage is pushed to websocket clients.
type liveMessage struct {
	Type  string        `json:"type"` // "snapshot" or "error"
	View  *viewResponse `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
}

// live streams the computed view of the caller's tasks. A message is sent
// for the current snapshot and again after every change. Slow clients only
// get the latest snapshot.
func (s *Server) live(c *websocket.Conn) {
	id, _ := c.Locals(IdentityKey).(identity.Identity)
	log := s.logger.With("owner", id.OwnerID)
	defer c.Close()

	send := func(msg liveMessage) bool {
		if err := c.WriteJSON(msg); err != nil {
			log.Warn("live write failed", "type", msg.Type, "error", err)
			return false
		}
		return true
	}

	mode, err := view.ParseMode(c.Query("filter"))
	if err != nil {
		send(liveMessage{Type: "error", Error: err.Error()})
		return
	}
	search := view.ParseQuery(c.Query("search"))

	var sched *scheduler.Scheduler
	if s.pool != nil {
		sched = s.pool.Get(id.OwnerID)
	}
	if sched == nil {
		send(liveMessage{Type: "error", Error: "live updates unavailable"})
		return
	}

	updates := make(chan []task.Task, 1)
	remove := sched.OnSnapshot(func(tasks []task.Task) {
		for {
			select {
			case updates <- tasks:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer remove()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("live connection error", "error", err)
				}
				return
			}
		}
	}()

	log.Debug("live connection opened", "filter", mode)
	for {
		select {
		case <-closed:
			log.Debug("live connection closed")
			return
		case <-sched.Done():
			if err := sched.Err(); err != nil {
				log.Error("live feed stopped", "error", err)
				send(liveMessage{Type: "error", Error: "live updates unavailable: " + err.Error()})
			}
			return
		case tasks := <-updates:
			v := s.renderView(view.Compute(tasks, mode, search), tasks)
			if !send(liveMessage{Type: "snapshot", View: &v}) {
				return
			}
		}
	}
}
