package localstore

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
)

func TestRedisKeysAreNamespaced(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	cases := []struct {
		namespace string
		want      string
	}{
		{DefaultRedisNamespace, "learnview:progress_Go_course_beginner"},
		{"learnview", "learnview:progress_Go_course_beginner"},
		{"", "progress_Go_course_beginner"},
	}
	for _, tc := range cases {
		if got := NewRedisKV(rdb, tc.namespace).fullKey("progress_Go_course_beginner"); got != tc.want {
			t.Fatalf("namespace %q: got=%q want=%q", tc.namespace, got, tc.want)
		}
	}
}
