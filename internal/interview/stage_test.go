package interview

import "testing"

func TestStageFor(t *testing.T) {
	cases := []struct {
		n    int
		want Stage
	}{
		{0, StageIntro},
		{1, StageIntro},
		{2, StageResume},
		{3, StageResume},
		{4, StageTechnical},
		{5, StageHR},
		{6, StageClosing},
		{100, StageClosing},
	}
	for _, tc := range cases {
		if got := StageFor(tc.n); got != tc.want {
			t.Errorf("StageFor(%d) = %s, want %s", tc.n, got, tc.want)
		}
	}
}

func TestStageTerminal(t *testing.T) {
	for _, s := range []Stage{StageIntro, StageResume, StageTechnical, StageHR} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StageClosing.Terminal() {
		t.Errorf("closing should be terminal")
	}
}
