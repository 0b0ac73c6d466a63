package version

import (
	"errors"
	"testing"
)

func TestParseFromString(t *testing.T) {
	goodValues := map[string]string{
		"v885":   "v885",
		" v885 ": "v885",
		"885":    "885",
		"wtc12":  "wtc12",
		"V007":   "V7",
		"0":      "0",
	}

	for orig, want := range goodValues {
		got, err := Parse(orig)
		if err != nil {
			t.Fatalf("got unexpected error (orig value = '%q'):\nerror:\t%v", orig, err)
		}
		if got.String() != want {
			t.Fatalf("got invalid result (orig value = '%q'):\nwant:\t%q\ngot:\t%q", orig, want, got)
		}
	}

	// bad values tests

	badValues := []string{"", "v", "v8.8.5", "885v", "v-1", "v 885", "1.2", "v99999999999999999999999"}

	for _, orig := range badValues {
		if _, err := Parse(orig); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("got unexpected error (orig value = '%q'):\nwant error:\tErrInvalidFormat\ngot error:\t%v", orig, err)
		}
		if Validate(orig) {
			t.Fatalf("got valid result for bad value '%q'", orig)
		}
	}
}

func TestDecrement(t *testing.T) {
	goodValues := []struct {
		orig   string
		offset int
		want   string
	}{
		{"v885", 2, "v883"},
		{"885", 2, "883"},
		{"v2", 2, "v0"},
		{"v10", 0, "v10"},
		{"rel100", 10, "rel90"},
	}

	for _, x := range goodValues {
		got, err := Decrement(x.orig, x.offset)
		if err != nil {
			t.Fatalf("got unexpected error (orig value = '%q'):\nerror:\t%v", x.orig, err)
		}
		if got != x.want {
			t.Fatalf("got invalid result (orig value = '%q'):\nwant:\t%q\ngot:\t%q", x.orig, x.want, got)
		}
	}

	if _, err := Decrement("v1", 2); !errors.Is(err, ErrNegativeResult) {
		t.Fatalf("got unexpected error (orig value = 'v1'):\nwant error:\tErrNegativeResult\ngot error:\t%v", err)
	}

	if _, err := Decrement("1.0", 2); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("got unexpected error (orig value = '1.0'):\nwant error:\tErrInvalidFormat\ngot error:\t%v", err)
	}
}

func TestMustParse(t *testing.T) {
	if v := MustParse("broken"); v.String() != "0" {
		t.Fatalf("got invalid result:\nwant:\t%q\ngot:\t%q", "0", v)
	}
}
