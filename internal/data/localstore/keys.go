package localstore

import (
	"strconv"

	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
)

const (
	prefixProgress     = "progress_"
	prefixConversation = "conversation_"
	prefixLesson       = "lesson_"
	prefixLastPosition = "last_position_"
)

func ProgressKey(scope learning.Scope) string {
	return prefixProgress + scope.Key()
}

func ConversationKey(scope learning.Scope) string {
	return prefixConversation + scope.Key()
}

func LessonKey(topic, difficulty string, moduleID, lessonIndex int) string {
	return prefixLesson + topic + "_" + difficulty + "_" + strconv.Itoa(moduleID) + "_" + strconv.Itoa(lessonIndex)
}

func LastPositionKey(courseID string) string {
	return prefixLastPosition + courseID
}
