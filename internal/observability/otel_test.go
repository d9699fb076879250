package observability

import (
	"reflect"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" a=1, b = two ,broken,=x,c=")
	want := map[string]string{"a": "1", "b": "two"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseHeaders: got=%v want=%v", got, want)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}

func TestClampRatio(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: DefaultSampleRatio, 0.5: 0.5, 3: 1}
	for in, want := range cases {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v): got=%v want=%v", in, got, want)
		}
	}
}
