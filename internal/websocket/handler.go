package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
)

// HandleWebSocket upgrades authenticated requests and subscribes them to
// their family's changes.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household devices connect from any origin
		})
		if err != nil {
			hub.logger.Warn("accept websocket", "error", err)
			return
		}
		defer conn.CloseNow()

		hub.logger.Debug("client connected", "family_id", ac.FamilyID, "member_id", ac.MemberID)
		NewClient(hub, conn, ac.FamilyID, ac.MemberID).Run(r.Context())
	}
}
