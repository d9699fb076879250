package learning

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LessonKey is the completion identity of a lesson: "<moduleId>-<lessonIndex>".
// Every persisted progress record, local or remote, uses this exact string.
func LessonKey(moduleID, lessonIndex int) string {
	return strconv.Itoa(moduleID) + "-" + strconv.Itoa(lessonIndex)
}

func ParseLessonKey(key string) (moduleID, lessonIndex int, err error) {
	m, l, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid lesson key %q", key)
	}
	if moduleID, err = strconv.Atoi(m); err != nil {
		return 0, 0, fmt.Errorf("invalid lesson key %q: %w", key, err)
	}
	if lessonIndex, err = strconv.Atoi(l); err != nil {
		return 0, 0, fmt.Errorf("invalid lesson key %q: %w", key, err)
	}
	return moduleID, lessonIndex, nil
}

// ProgressSet is a set of completed lesson keys for one course.
type ProgressSet map[string]struct{}

func NewProgressSet(keys ...string) ProgressSet {
	s := make(ProgressSet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s ProgressSet) Add(key string) {
	key = strings.TrimSpace(key)
	if key != "" {
		s[key] = struct{}{}
	}
}

func (s ProgressSet) Remove(key string) { delete(s, key) }

func (s ProgressSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s ProgressSet) Len() int { return len(s) }

// Keys returns the members sorted.
func (s ProgressSet) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s ProgressSet) Clone() ProgressSet {
	out := make(ProgressSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func (s ProgressSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Keys())
}

func (s *ProgressSet) UnmarshalJSON(b []byte) error {
	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	*s = NewProgressSet(keys...)
	return nil
}

// Merge unions the server-reported and locally cached completion sets.
// Neither source can remove a key the other reported.
func Merge(server, local ProgressSet) ProgressSet {
	out := make(ProgressSet, len(server)+len(local))
	for k := range server {
		out[k] = struct{}{}
	}
	for k := range local {
		out[k] = struct{}{}
	}
	return out
}

// CompletedFromCourse collects the completion flags embedded in a course.
// Lessons of a module without an id fall back to their legacy lesson id.
func CompletedFromCourse(c *Course) ProgressSet {
	out := ProgressSet{}
	if c == nil {
		return out
	}
	for _, m := range c.Modules {
		for li, l := range m.Lessons {
			if !l.Completed {
				continue
			}
			switch {
			case m.ID > 0:
				out.Add(LessonKey(m.ID, li))
			case l.ID != "":
				out.Add(l.ID)
			}
		}
	}
	return out
}
