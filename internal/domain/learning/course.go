package learning

import (
	"fmt"
	"strings"
)

type Format string

const (
	FormatCourse     Format = "course"
	FormatFlashcards Format = "flashcards"
	FormatQuiz       Format = "quiz"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCourse:
		return FormatCourse, nil
	case FormatFlashcards:
		return FormatFlashcards, nil
	case FormatQuiz:
		return FormatQuiz, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

const DifficultyBeginner = "beginner"

// RequiresPremium reports whether generating at this difficulty needs a premium entitlement.
func RequiresPremium(difficulty string) bool {
	d := strings.ToLower(strings.TrimSpace(difficulty))
	return d != "" && d != DifficultyBeginner
}

// PlaceholderContent is what the generator stores for lessons it has not written yet.
const PlaceholderContent = "Content for this lesson is coming soon..."

type Lesson struct {
	// ID is a legacy identifier some stored courses carry; completion tracking
	// uses LessonKey instead.
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// HasContent is false for empty or placeholder content.
func (l Lesson) HasContent() bool {
	return IsUsableContent(l.Content)
}

func IsUsableContent(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != PlaceholderContent
}

type Module struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

type Course struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Topic        string   `json:"topic"`
	Difficulty   string   `json:"difficulty"`
	TotalModules int      `json:"totalModules"`
	TotalLessons int      `json:"totalLessons"`
	Modules      []Module `json:"modules"`
}

// Normalize fills 1-based module ids where missing and recomputes totals.
func (c *Course) Normalize() {
	if c == nil {
		return
	}
	total := 0
	for i := range c.Modules {
		if c.Modules[i].ID <= 0 {
			c.Modules[i].ID = i + 1
		}
		total += len(c.Modules[i].Lessons)
	}
	c.TotalModules = len(c.Modules)
	c.TotalLessons = total
}

// Clone deep-copies the course so a writer can replace the session copy wholesale.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}
	out := *c
	out.Modules = make([]Module, len(c.Modules))
	for i, m := range c.Modules {
		m.Lessons = append([]Lesson(nil), m.Lessons...)
		out.Modules[i] = m
	}
	return &out
}

// Lesson returns the lesson at modules[moduleID-1].lessons[lessonIndex].
func (c *Course) Lesson(moduleID, lessonIndex int) (Module, Lesson, bool) {
	if c == nil || moduleID < 1 || moduleID > len(c.Modules) {
		return Module{}, Lesson{}, false
	}
	m := c.Modules[moduleID-1]
	if lessonIndex < 0 || lessonIndex >= len(m.Lessons) {
		return Module{}, Lesson{}, false
	}
	return m, m.Lessons[lessonIndex], true
}

// WithLessonContent returns a copy with one lesson's content replaced.
func (c *Course) WithLessonContent(moduleID, lessonIndex int, content string) (*Course, error) {
	if _, _, ok := c.Lesson(moduleID, lessonIndex); !ok {
		return nil, fmt.Errorf("lesson %s out of range", LessonKey(moduleID, lessonIndex))
	}
	out := c.Clone()
	out.Modules[moduleID-1].Lessons[lessonIndex].Content = content
	return out, nil
}

// WithCompletion returns a copy whose completion flags mirror done.
func (c *Course) WithCompletion(done ProgressSet) *Course {
	out := c.Clone()
	if out == nil {
		return nil
	}
	for mi := range out.Modules {
		m := &out.Modules[mi]
		for li := range m.Lessons {
			m.Lessons[li].Completed = done.Has(LessonKey(m.ID, li))
		}
	}
	return out
}

// ProgressPercent is the rounded share of lessons in done.
func (c *Course) ProgressPercent(done ProgressSet) int {
	if c == nil {
		return 0
	}
	total, hit := 0, 0
	for _, m := range c.Modules {
		for li := range m.Lessons {
			total++
			if done.Has(LessonKey(m.ID, li)) {
				hit++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return (hit*100 + total/2) / total
}

// HasStructure is the "usable course" rule: at least one module.
func (c *Course) HasStructure() bool {
	return c != nil && len(c.Modules) > 0
}
