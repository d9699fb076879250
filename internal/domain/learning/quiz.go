package learning

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type Quiz struct {
	ID         string         `json:"id,omitempty"`
	Topic      string         `json:"topic"`
	Difficulty string         `json:"difficulty"`
	Questions  []QuizQuestion `json:"questions"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type Deck struct {
	ID         string      `json:"id,omitempty"`
	Topic      string      `json:"topic"`
	Difficulty string      `json:"difficulty"`
	Cards      []Flashcard `json:"cards"`
}
