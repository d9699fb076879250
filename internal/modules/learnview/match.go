package learnview

import (
	"strings"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
)

func sameText(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func topicMatches(it courseapi.LibraryItem, topic string) bool {
	if sameText(it.Topic, topic) || sameText(it.OriginalTopic, topic) {
		return true
	}
	return it.CourseData != nil && sameText(it.CourseData.Topic, topic)
}

func difficultyMatches(it courseapi.LibraryItem, difficulty string) bool {
	if sameText(it.Difficulty, difficulty) || sameText(it.Level, difficulty) {
		return true
	}
	return it.CourseData != nil && sameText(it.CourseData.Difficulty, difficulty)
}

// hasPayload reports whether an item carries what the format displays:
// modules or topics for a course, questions for a quiz, cards for a deck.
func hasPayload(it courseapi.LibraryItem, format learning.Format) bool {
	switch format {
	case learning.FormatQuiz:
		return len(it.QuizQuestions()) > 0
	case learning.FormatFlashcards:
		return len(it.DeckCards()) > 0
	default:
		return len(it.Structure()) > 0
	}
}

// findMatch returns the first item equal on topic and difficulty that has a
// usable payload. Equality is case-insensitive and exact.
func findMatch(items []courseapi.LibraryItem, topic, difficulty string, format learning.Format) (courseapi.LibraryItem, bool) {
	for _, it := range items {
		if topicMatches(it, topic) && difficultyMatches(it, difficulty) && hasPayload(it, format) {
			return it, true
		}
	}
	return courseapi.LibraryItem{}, false
}
