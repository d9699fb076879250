package courseapi

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
)

// CourseData is the nested course document some library items carry.
type CourseData struct {
	ID         string                  `json:"id,omitempty"`
	Title      string                  `json:"title,omitempty"`
	Topic      string                  `json:"topic,omitempty"`
	Difficulty string                  `json:"difficulty,omitempty"`
	Modules    []learning.Module       `json:"modules,omitempty"`
	Topics     []learning.Module       `json:"topics,omitempty"`
	Questions  []learning.QuizQuestion `json:"questions,omitempty"`
	Cards      []learning.Flashcard    `json:"cards,omitempty"`
	Flashcards []learning.Flashcard    `json:"flashcards,omitempty"`
}

// LibraryItem is one entry of GET /library. Older items keep their structure
// at the top level, newer ones under courseData; both are read.
type LibraryItem struct {
	ID            string                  `json:"id,omitempty"`
	MongoID       string                  `json:"_id,omitempty"`
	Type          string                  `json:"type,omitempty"`
	Title         string                  `json:"title,omitempty"`
	Topic         string                  `json:"topic,omitempty"`
	OriginalTopic string                  `json:"originalTopic,omitempty"`
	Difficulty    string                  `json:"difficulty,omitempty"`
	Level         string                  `json:"level,omitempty"`
	CourseData    *CourseData             `json:"courseData,omitempty"`
	Modules       []learning.Module       `json:"modules,omitempty"`
	Topics        []learning.Module       `json:"topics,omitempty"`
	Questions     []learning.QuizQuestion `json:"questions,omitempty"`
	Cards         []learning.Flashcard    `json:"cards,omitempty"`
	Flashcards    []learning.Flashcard    `json:"flashcards,omitempty"`
}

func (it LibraryItem) Identifier() string {
	switch {
	case strings.TrimSpace(it.ID) != "":
		return it.ID
	case strings.TrimSpace(it.MongoID) != "":
		return it.MongoID
	case it.CourseData != nil:
		return it.CourseData.ID
	}
	return ""
}

// Structure returns the first non-empty of modules/topics, top level first.
func (it LibraryItem) Structure() []learning.Module {
	switch {
	case len(it.Modules) > 0:
		return it.Modules
	case len(it.Topics) > 0:
		return it.Topics
	case it.CourseData != nil && len(it.CourseData.Modules) > 0:
		return it.CourseData.Modules
	case it.CourseData != nil && len(it.CourseData.Topics) > 0:
		return it.CourseData.Topics
	}
	return nil
}

func (it LibraryItem) QuizQuestions() []learning.QuizQuestion {
	if len(it.Questions) > 0 {
		return it.Questions
	}
	if it.CourseData != nil {
		return it.CourseData.Questions
	}
	return nil
}

func (it LibraryItem) DeckCards() []learning.Flashcard {
	for _, cards := range [][]learning.Flashcard{it.Cards, it.Flashcards} {
		if len(cards) > 0 {
			return cards
		}
	}
	if it.CourseData != nil {
		if len(it.CourseData.Cards) > 0 {
			return it.CourseData.Cards
		}
		return it.CourseData.Flashcards
	}
	return nil
}

// Course converts the item to the session's working copy.
func (it LibraryItem) Course() *learning.Course {
	c := &learning.Course{
		ID:         it.Identifier(),
		Title:      it.Title,
		Topic:      firstNonEmpty(it.Topic, it.OriginalTopic),
		Difficulty: firstNonEmpty(it.Difficulty, it.Level),
	}
	if cd := it.CourseData; cd != nil {
		c.Title = firstNonEmpty(c.Title, cd.Title)
		c.Topic = firstNonEmpty(c.Topic, cd.Topic)
		c.Difficulty = firstNonEmpty(c.Difficulty, cd.Difficulty)
	}
	c.Modules = append([]learning.Module(nil), it.Structure()...)
	c = c.Clone()
	c.Normalize()
	return c
}

type searchResponse struct {
	Items []LibraryItem `json:"items"`
}

type itemResponse struct {
	Item *LibraryItem `json:"item"`
}

type GenerateRequest struct {
	Topic      string          `json:"topic"`
	Format     learning.Format `json:"format,omitempty"`
	Difficulty string          `json:"difficulty"`
	Questions  int             `json:"questions,omitempty"`
}

// GenerateResponse covers /generate-course and /generate-flashcards. The course
// may arrive as top-level modules or wrapped in content.
type GenerateResponse struct {
	CourseID   string                  `json:"courseId,omitempty"`
	Title      string                  `json:"title,omitempty"`
	Content    json.RawMessage         `json:"content,omitempty"`
	Modules    []learning.Module       `json:"modules,omitempty"`
	Questions  []learning.QuizQuestion `json:"questions,omitempty"`
	Cards      []learning.Flashcard    `json:"cards,omitempty"`
	Flashcards []learning.Flashcard    `json:"flashcards,omitempty"`
	IsExisting bool                    `json:"isExisting,omitempty"`
}

// AsItem folds the response into a LibraryItem so validation and conversion
// share one code path with library hits.
func (r GenerateResponse) AsItem(req GenerateRequest) LibraryItem {
	it := LibraryItem{
		ID:         r.CourseID,
		Type:       string(req.Format),
		Title:      r.Title,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Modules:    r.Modules,
		Questions:  r.Questions,
		Cards:      r.Cards,
		Flashcards: r.Flashcards,
	}
	if len(r.Content) > 0 {
		var cd CourseData
		if err := json.Unmarshal(r.Content, &cd); err == nil {
			it.CourseData = &cd
		}
	}
	return it
}

type LessonRequest struct {
	Action      string `json:"action"`
	CourseID    string `json:"courseId"`
	ModuleID    int    `json:"moduleId"`
	LessonIndex int    `json:"lessonIndex"`
	LessonTitle string `json:"lessonTitle"`
	ModuleTitle string `json:"moduleTitle"`
	CourseTopic string `json:"courseTopic"`
	Difficulty  string `json:"difficulty"`
}

type lessonResponse struct {
	Content string `json:"content"`
}

type ProgressUpdate struct {
	CourseID          string `json:"courseId"`
	Progress          int    `json:"progress"`
	Completed         bool   `json:"completed"`
	IsLessonCompleted bool   `json:"isLessonCompleted"`
	LessonID          string `json:"lessonId"`
}

type conversationRequest struct {
	Action     string             `json:"action"`
	CourseID   string             `json:"courseId,omitempty"`
	Topic      string             `json:"topic"`
	Difficulty string             `json:"difficulty"`
	Format     learning.Format    `json:"format"`
	Messages   []learning.Message `json:"messages,omitempty"`
}

type conversationResponse struct {
	Messages []learning.Message `json:"messages"`
}

type saveCourseRequest struct {
	Action     string          `json:"action"`
	Topic      string          `json:"topic"`
	Difficulty string          `json:"difficulty"`
	Format     learning.Format `json:"format"`
	CourseData any             `json:"courseData"`
}

// Usage is the caller's generation allowance.
type Usage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	IsPremium bool `json:"isPremium"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
