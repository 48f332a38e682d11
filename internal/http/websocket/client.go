package websocket

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type socketClient struct {
	id     *uuid.UUID
	socket *websocket.Conn
}

func (client *socketClient) SendMessage(message *Message) error {
	return client.socket.WriteJSON(message)
}

// Read drains the clients websocket connection until it errors, which is
// how disconnects surface. The activity socket carries no client-to-server
// commands, so the frames themselves are discarded.
func (client *socketClient) Read() error {
	for {
		if _, _, err := client.socket.ReadMessage(); err != nil {
			return err
		}
	}
}

func (client *socketClient) Close() {
	client.socket.Close()
}
