package domain

import (
	"fmt"
	"time"
)

// CursorState is the ephemeral live-cursor position of one user in one
// workspace. It exists only in process memory and is evicted once its age
// exceeds the staleness threshold.
type CursorState struct {
	WorkspaceID string    `json:"workspaceId"`
	UserID      string    `json:"userId"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CursorColor derives a stable display color from a user id. The same user
// always renders the same hue across reconnects without any coordination.
func CursorColor(userID string) string {
	var hash int32
	for _, c := range userID {
		hash = c + (hash << 5) - hash
	}
	hue := ((hash % 360) + 360) % 360
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", hue)
}
