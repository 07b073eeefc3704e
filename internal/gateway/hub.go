package gateway

// Hub owns the connection set and the room membership tables. Both are
// process-local and touched only by the Run goroutine; everything else
// talks to it through channels.
type Hub struct {
	clients map[*Client]bool

	// rooms maps a room address to its member set. A joined connection
	// sits in the session room plus one role sub-room.
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	membership chan roomChange
	broadcast  chan roomMessage
}

type roomChange struct {
	client *Client
	room   string
	leave  bool
}

type roomMessage struct {
	room string // empty means every connection
	data []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		membership: make(chan roomChange),
		broadcast:  make(chan roomMessage),
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

func (h *Hub) JoinRoom(c *Client, room string) {
	h.membership <- roomChange{client: c, room: room}
}

func (h *Hub) LeaveRoom(c *Client, room string) {
	h.membership <- roomChange{client: c, room: room, leave: true}
}

// Broadcast fans data out to one room, fire-and-forget.
func (h *Hub) Broadcast(room string, data []byte) {
	h.broadcast <- roomMessage{room: room, data: data}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case change := <-h.membership:
			if change.leave {
				if members, ok := h.rooms[change.room]; ok {
					delete(members, change.client)
					if len(members) == 0 {
						delete(h.rooms, change.room)
					}
				}
				break
			}
			// A client dropped between its join request and here must not
			// re-enter a room table.
			if !h.clients[change.client] {
				break
			}
			members, ok := h.rooms[change.room]
			if !ok {
				members = make(map[*Client]bool)
				h.rooms[change.room] = members
			}
			members[change.client] = true

		case message := <-h.broadcast:
			if message.room == "" {
				for client := range h.clients {
					h.deliver(client, message.data)
				}
				break
			}
			for client := range h.rooms[message.room] {
				h.deliver(client, message.data)
			}
		}
	}
}

// deliver drops the whole connection if its send buffer is full: a consumer
// that slow re-syncs on reconnect anyway.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.drop(client)
	}
}

// drop never closes client.send: the readPump goroutine keeps writing acks
// and errors to it until the closed conn unwinds the pumps, so the channel
// must stay open. Closing the conn is the one shutdown signal.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	_ = client.conn.Close()
}
