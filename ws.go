package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ClientEvent is a command sent by a connected observer.
type ClientEvent struct {
	Type string   `json:"type"` // "refresh" | "clear" | "location"
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// For development: allow the frontend dev origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsDiscoveryHandler exposes a discovery session as a live feed: every state
// snapshot is pushed to the socket, and the client can send refresh, clear,
// and location events back. Closing the socket tears the subscription down.
func wsDiscoveryHandler(db *sql.DB, svc *DiscoveryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %s: %v", userID, err)
			return
		}

		session := svc.Session(userID)
		snapshots, unsubscribe := session.Subscribe()

		// Kick off the first run so new observers don't stare at idle
		session.RequestDiscovery()

		done := make(chan struct{})

		// Writer: session snapshots -> socket
		go func() {
			defer conn.Close()
			for {
				select {
				case snap, ok := <-snapshots:
					if !ok {
						return
					}
					conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					if err := conn.WriteJSON(snap); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Reader: socket -> session commands (blocks until disconnect)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var evt ClientEvent
			if err := json.Unmarshal(raw, &evt); err != nil {
				continue
			}
			switch evt.Type {
			case "refresh":
				session.RequestDiscovery()
			case "clear":
				session.Clear()
			case "location":
				if evt.Lat == nil || evt.Lon == nil {
					continue
				}
				if _, err := db.Exec(`
					UPDATE users SET location_lat = $1, location_lon = $2, last_active = NOW() WHERE id = $3
				`, *evt.Lat, *evt.Lon, userID); err != nil {
					log.Println("Error updating location over WS:", err)
					continue
				}
				notifyProfileChanged(db, userID)
				session.NotifyLocationChanged()
			}
		}

		close(done)
		unsubscribe()
	}
}
