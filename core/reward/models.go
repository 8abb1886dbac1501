package reward

import "time"

// Reasons points are awarded for.
const (
	ReasonResourceShared  = "resource_shared"
	ReasonResourceLiked   = "resource_liked"
	ReasonGroupCreated    = "group_created"
	ReasonGroupJoined     = "group_joined"
	ReasonMeetingAttended = "meeting_attended"
	ReasonCanvasImported  = "canvas_imported"
)

var (
	points = map[string]int{
		ReasonResourceShared:  10,
		ReasonResourceLiked:   2,
		ReasonGroupCreated:    5,
		ReasonGroupJoined:     2,
		ReasonMeetingAttended: 3,
		ReasonCanvasImported:  5,
	}

	// Badges ordered by threshold.
	Badges = []Badge{
		{Name: "Newcomer", Threshold: 0},
		{Name: "Contributor", Threshold: 50},
		{Name: "Scholar", Threshold: 150},
		{Name: "Mentor", Threshold: 400},
		{Name: "Legend", Threshold: 1000},
	}
)

type (
	Entry struct {
		ID        int       `json:"id"`
		UserID    int       `json:"user_id"`
		Points    int       `json:"points"`
		Reason    string    `json:"reason"`
		CreatedAt time.Time `json:"created_at"`
	}

	Badge struct {
		Name      string `json:"name"`
		Threshold int    `json:"threshold"`
	}

	Summary struct {
		Points int     `json:"points"`
		Badges []Badge `json:"badges"`
		Next   *Badge  `json:"next"`
	}

	Standing struct {
		UserID   int    `json:"user_id"`
		Username string `json:"username"`
		Points   int    `json:"points"`
	}
)

// PointsFor returns the points awarded for `reason`, 0 if unknown.
func PointsFor(reason string) int {
	return points[reason]
}

// summarize returns the badges earned with `total` points and the next one to earn.
func summarize(total int) Summary {
	s := Summary{Points: total, Badges: make([]Badge, 0, len(Badges))}
	for i, b := range Badges {
		if total >= b.Threshold {
			s.Badges = append(s.Badges, b)
			continue
		}
		next := Badges[i]
		s.Next = &next
		break
	}
	return s
}
