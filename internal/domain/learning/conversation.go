package learning

import (
	"strings"
	"time"
)

type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

type Message struct {
	Type      Speaker   `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	HTML      bool      `json:"html,omitempty"`
}

func (m Message) Valid() bool {
	return (m.Type == SpeakerUser || m.Type == SpeakerAI) && strings.TrimSpace(m.Message) != ""
}

// Scope names the course a piece of persisted state belongs to. Courses that
// have not been saved yet are addressed by topic, format and difficulty.
type Scope struct {
	CourseID   string
	Topic      string
	Format     Format
	Difficulty string
}

// Key is the course id when known, else "<topic>_<format>_<difficulty>".
func (s Scope) Key() string {
	if id := strings.TrimSpace(s.CourseID); id != "" {
		return id
	}
	format := s.Format
	if format == "" {
		format = FormatCourse
	}
	return strings.TrimSpace(s.Topic) + "_" + string(format) + "_" + strings.TrimSpace(s.Difficulty)
}

// Position is the last lesson a learner had open in a course.
type Position struct {
	ModuleID    int       `json:"moduleId"`
	LessonIndex int       `json:"lessonIndex"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
