package gateway

import (
	"context"
	"encoding/json"
	"log"

	"jam-session-service/internal/jam"
)

// handleMessage runs on the connection's readPump goroutine, so every
// mutation of the client's lifecycle fields is single-threaded.
func (s *Server) handleMessage(c *Client, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.sendError(c, "", jam.Errf(jam.KindBadRequest, "invalid JSON frame"))
		return
	}

	// The limiter counts every inbound operation; a breach fails only the
	// current call and leaves the connection open.
	if !c.limiter.allow() {
		s.sendError(c, f.Type, jam.Errf(jam.KindRateLimited, "rate limit exceeded"))
		return
	}

	ctx := context.Background()

	switch f.Type {
	case MsgJoin:
		s.handleJoin(ctx, c, f.Payload)
	case MsgLeave:
		s.handleLeave(ctx, c, f.Payload)
	case MsgRequestState:
		s.handleRequestState(ctx, c, f.Payload)
	case MsgSignalReady:
		s.handleSignalReady(ctx, c, f.Payload)
	case MsgHistory:
		s.handleHistory(ctx, c, f.Payload)
	case MsgStart, MsgStop, MsgNext, MsgPrevious, MsgPause, MsgResume:
		s.handlePlayback(ctx, c, f.Type, f.Payload)
	case MsgReorder:
		s.handleReorder(ctx, c, f.Payload)
	default:
		s.sendError(c, f.Type, jam.Errf(jam.KindBadRequest, "unknown message type %q", f.Type))
	}
}

func (s *Server) handleJoin(ctx context.Context, c *Client, raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SessionID == "" {
		s.sendError(c, MsgJoin, jam.Errf(jam.KindBadRequest, "missing session id"))
		return
	}

	// In-line auth upgrade; failure keeps the connection anonymous.
	if p.Token != "" && s.resolver != nil {
		if identity, err := s.resolver.Resolve(p.Token); err == nil {
			c.identity = &identity
			if c.state == StateConnected {
				c.state = StateAuthenticated
			}
		}
	}

	sess, err := s.ctrl.Session(ctx, p.SessionID)
	if err != nil {
		s.sendError(c, MsgJoin, err)
		return
	}

	// One session at a time: joining elsewhere leaves the old one first.
	if c.state == StateJoined {
		s.leaveSession(c)
	}

	role := RoleObserver
	if c.identity != nil {
		role = RoleParticipant
		if sess.HostID != nil && *sess.HostID == *c.identity {
			role = RoleHost
		}
	}

	s.hub.JoinRoom(c, jam.SessionRoom(sess.ID))
	s.hub.JoinRoom(c, roleRoom(sess.ID, role))
	c.state = StateJoined
	c.sessionID = sess.ID
	c.role = role

	state, err := s.ctrl.State(ctx, sess.ID)
	if err != nil {
		log.Printf("jam-service: join snapshot %s: %v", sess.ID, err)
	} else {
		s.sendTo(c, jam.EventStateSync, state)
	}

	if role == RoleParticipant {
		s.emitRoom(roleRoom(sess.ID, RoleHost), jam.EventParticipantConnected, map[string]any{
			"sessionId":    sess.ID,
			"connectionId": c.id,
			"userId":       c.identity,
		})
	}
	s.emitRoom(jam.SessionRoom(sess.ID), jam.EventSessionJoined, map[string]any{
		"sessionId":    sess.ID,
		"connectionId": c.id,
		"role":         role,
	})

	s.sendAck(c, MsgJoin, role, nil)
}

func (s *Server) handleLeave(ctx context.Context, c *Client, raw json.RawMessage) {
	var p leavePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SessionID == "" {
		s.sendError(c, MsgLeave, jam.Errf(jam.KindBadRequest, "missing session id"))
		return
	}
	if c.state != StateJoined || c.sessionID != p.SessionID {
		s.sendError(c, MsgLeave, jam.Errf(jam.KindInvalidState, "not joined to this session"))
		return
	}
	s.leaveSession(c)
	s.sendAck(c, MsgLeave, "", nil)
}

// leaveSession removes the connection from its rooms, notifies the rest of
// the session, and resets the lifecycle back to authenticated/connected.
func (s *Server) leaveSession(c *Client) {
	sessionID, role := c.sessionID, c.role

	s.hub.LeaveRoom(c, jam.SessionRoom(sessionID))
	s.hub.LeaveRoom(c, roleRoom(sessionID, role))

	c.sessionID = ""
	c.role = ""
	if c.identity != nil {
		c.state = StateAuthenticated
	} else {
		c.state = StateConnected
	}

	if role == RoleParticipant {
		s.emitRoom(roleRoom(sessionID, RoleHost), jam.EventParticipantGone, map[string]any{
			"sessionId":    sessionID,
			"connectionId": c.id,
			"userId":       c.identity,
		})
	}
	s.emitRoom(jam.SessionRoom(sessionID), jam.EventSessionLeft, map[string]any{
		"sessionId":    sessionID,
		"connectionId": c.id,
		"role":         role,
	})
}

// handleDisconnect runs from the readPump defer; the hub discards the rest
// of the per-connection state right after.
func (s *Server) handleDisconnect(c *Client) {
	if c.state == StateJoined {
		s.leaveSession(c)
	}
}

func (s *Server) handleRequestState(ctx context.Context, c *Client, raw json.RawMessage) {
	var p requestStatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SessionID == "" {
		s.sendError(c, MsgRequestState, jam.Errf(jam.KindBadRequest, "missing session id"))
		return
	}
	state, err := s.ctrl.State(ctx, p.SessionID)
	if err != nil {
		s.sendError(c, MsgRequestState, err)
		return
	}
	s.sendTo(c, jam.EventStateSync, state)
}

func (s *Server) handleHistory(ctx context.Context, c *Client, raw json.RawMessage) {
	var p historyPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SessionID == "" {
		s.sendError(c, MsgHistory, jam.Errf(jam.KindBadRequest, "missing session id"))
		return
	}
	entries, err := s.ctrl.History(ctx, p.SessionID, p.Limit)
	if err != nil {
		if jam.ErrKind(err) == "" {
			log.Printf("jam-service: ws history session %s: %v", p.SessionID, err)
		}
		s.sendError(c, MsgHistory, err)
		return
	}
	s.sendAck(c, MsgHistory, c.role, map[string]any{"entries": entries})
}

func (s *Server) handleSignalReady(ctx context.Context, c *Client, raw json.RawMessage) {
	if c.identity == nil {
		s.sendError(c, MsgSignalReady, jam.Errf(jam.KindForbidden, "authentication required"))
		return
	}
	var p signalReadyPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SessionID == "" || p.EntryID == "" {
		s.sendError(c, MsgSignalReady, jam.Errf(jam.KindBadRequest, "missing session or entry id"))
		return
	}
	ok, err := s.ctrl.EntryInSession(ctx, p.SessionID, p.EntryID)
	if err != nil {
		s.sendError(c, MsgSignalReady, err)
		return
	}
	if !ok {
		s.sendError(c, MsgSignalReady, jam.Errf(jam.KindNotFound, "entry not in session"))
		return
	}
	s.emitRoom(roleRoom(p.SessionID, RoleHost), jam.EventEntryReady, map[string]any{
		"sessionId": p.SessionID,
		"entryId":   p.EntryID,
		"userId":    c.identity,
	})
	s.sendAck(c, MsgSignalReady, c.role, nil)
}

func (s *Server) handlePlayback(ctx context.Context, c *Client, typ string, raw json.RawMessage) {
	var p playbackPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SessionID == "" {
		s.sendError(c, typ, jam.Errf(jam.KindBadRequest, "missing session id"))
		return
	}

	var op func(context.Context, string, *string) (*jam.SessionState, error)
	switch typ {
	case MsgStart:
		op = s.ctrl.Start
	case MsgStop:
		op = s.ctrl.Stop
	case MsgNext:
		op = s.ctrl.Next
	case MsgPrevious:
		op = s.ctrl.Previous
	case MsgPause:
		op = s.ctrl.Pause
	case MsgResume:
		op = s.ctrl.Resume
	}

	state, err := op(ctx, p.SessionID, c.identity)
	if err != nil {
		if jam.ErrKind(err) == "" {
			log.Printf("jam-service: ws %s session %s: %v", typ, p.SessionID, err)
		}
		s.sendError(c, typ, err)
		return
	}
	s.sendAck(c, typ, c.role, state)
}

func (s *Server) handleReorder(ctx context.Context, c *Client, raw json.RawMessage) {
	var p reorderPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SessionID == "" {
		s.sendError(c, MsgReorder, jam.Errf(jam.KindBadRequest, "missing session id"))
		return
	}
	if err := s.ctrl.Reorder(ctx, p.SessionID, p.Entries, c.identity); err != nil {
		if jam.ErrKind(err) == "" {
			log.Printf("jam-service: ws reorder session %s: %v", p.SessionID, err)
		}
		s.sendError(c, MsgReorder, err)
		return
	}
	s.sendAck(c, MsgReorder, c.role, nil)
}
