package websocket

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kohaven/medley/pkg/logger"
)

var log = logger.Get("WebSocket")

// SocketHub manages the websocket upgrading, connecting and pushing of
// activity messages to connected clients. The activity socket is one-way;
// frames received from clients are read (to detect disconnects) and
// discarded.
type SocketHub struct {
	upgrader           *websocket.Upgrader
	clients            []*socketClient
	registerCh         chan *socketClient
	deregisterCh       chan *socketClient
	sendCh             chan *Message
	connectionCallback func() map[string]any
	running            bool
}

func New() *SocketHub {
	return &SocketHub{
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		running: false,
	}
}

// WithConnectionCallback sets a callback that will be executed each time a
// new client connects to this hub. The returned payload is delivered to the
// client in its Welcome message, furnishing it with the servers current
// state without having to wait for an Update frame (which may never come if
// the content does not change).
func (hub *SocketHub) WithConnectionCallback(callback func() map[string]any) {
	hub.connectionCallback = callback
}

// Start begins the socket hub by listening on all related channels for
// incoming clients and messages. Blocks until the context is cancelled.
func (hub *SocketHub) Start(ctx context.Context) {
	if hub.running {
		log.Emit(logger.WARNING, "Attempting to start socketHub when already running! Ignoring request.\n")
		return
	} else if ctx.Err() != nil {
		log.Emit(logger.STOP, "Refusing to start socket hub as provided context is already cancelled\n")
		return
	}
	log.Emit(logger.INFO, "Opening SocketHub!\n")

	hub.sendCh = make(chan *Message)
	hub.registerCh = make(chan *socketClient)
	hub.deregisterCh = make(chan *socketClient)
	hub.clients = make([]*socketClient, 0)
	hub.running = true

	defer hub.close()
loop:
	for {
		select {
		case message := <-hub.sendCh:
			if message.Target != nil {
				if _, client := hub.findClient(message.Target); client != nil {
					if err := client.SendMessage(message); err != nil {
						log.Emit(logger.ERROR, "Failed to send message to target {%v}: %v\n", message.Target, err.Error())
					}
				} else {
					log.Emit(logger.WARNING, "Attempted to send message to target {%v}, but no matching client was found.\n", message.Target)
				}

				break
			}

			hub.broadcastMessage(message)
		case client := <-hub.registerCh:
			hub.clients = append(hub.clients, client)
			log.Emit(logger.NEW, "Registered new client {%v}\n", client.id)
		case client := <-hub.deregisterCh:
			if idx, _ := hub.findClient(client.id); idx != -1 {
				hub.clients = append(hub.clients[:idx], hub.clients[idx+1:]...)
				log.Emit(logger.REMOVE, "Deregistered client {%v}\n", client.id)

				break
			}

			log.Emit(logger.WARNING, "Attempted to deregister unknown client {%v}\n", client.id)
		case <-ctx.Done():
			log.Emit(logger.REMOVE, "Shutting down socket hub! Closing all clients.\n")
			break loop
		}
	}
}

// Send accepts a message and will emit it on the send channel. The message
// is ignored if the hub is not running (see Start()). A message with a
// Target is only sent to the client with a matching ID, otherwise it is
// broadcast to all connected clients.
func (hub *SocketHub) Send(message *Message) {
	if !hub.running {
		log.Emit(logger.WARNING, "Attempted to send message via socket hub, however the hub is offline. Ignoring message.\n")
		return
	}

	hub.sendCh <- message
}

// UpgradeToSocket upgrades a given HTTP request to a websocket and adds the
// new client to the hub. Blocks for the lifetime of the connection.
func (hub *SocketHub) UpgradeToSocket(w http.ResponseWriter, r *http.Request) {
	if !hub.running {
		log.Emit(logger.ERROR, "Failed to upgrade incoming HTTP request to a websocket: SocketHub has not been started!\n")
		return
	}

	id, err := uuid.NewRandom()
	if err != nil {
		log.Emit(logger.ERROR, "Failed to generate UUID for new connection - aborting!\n")
		return
	}

	sock, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Emit(logger.ERROR, "Failed to upgrade incoming HTTP request to a websocket: %v\n", err.Error())
		return
	}

	client := &socketClient{id: &id, socket: sock}
	hub.registerCh <- client

	body := map[string]any{}
	if hub.connectionCallback != nil {
		body = hub.connectionCallback()
	}
	body["client"] = id

	hub.Send(&Message{
		Title:  "CONNECTION_ESTABLISHED",
		Body:   body,
		Target: &id,
		Type:   Welcome,
	})

	defer func() {
		hub.deregisterCh <- client
		client.Close()
	}()

	if err := client.Read(); err != nil {
		log.Emit(logger.WARNING, "Client {%v} closed, error: %v\n", client.id, err.Error())
	}
}

func (hub *SocketHub) close() {
	if !hub.running {
		return
	}

	for _, client := range hub.clients {
		client.Close()
	}

	hub.clients = nil
	hub.running = false
	log.Emit(logger.STOP, "Socket hub is now closed!\n")
}

// findClient returns the socketClient with the matching uuid if one can be
// found - if not, nil is returned. Additionally, the index of the client
// inside of the client list is returned as well.
func (hub *SocketHub) findClient(id *uuid.UUID) (int, *socketClient) {
	for idx, client := range hub.clients {
		if client.id == id {
			return idx, client
		}
	}

	return -1, nil
}

func (hub *SocketHub) broadcastMessage(message *Message) {
	for _, client := range hub.clients {
		if err := client.SendMessage(message); err != nil {
			log.Emit(logger.ERROR, "Failed to broadcast to client {%v}: %v\n", client.id, err.Error())
		}
	}
}
