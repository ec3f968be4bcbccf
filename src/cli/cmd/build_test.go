package cmd

import "testing"

func TestBuildChangedFlagScope(t *testing.T) {
	for _, name := range []string{"scss", "js"} {
		sub, _, err := buildCmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Fatalf("build %s not registered: %v", name, err)
		}
		if err := sub.ParseFlags([]string{"--changed"}); err != nil {
			t.Errorf("build %s --changed: %v", name, err)
		}
	}
	if err := buildCmd.ParseFlags([]string{"--changed"}); err != nil {
		t.Errorf("build --changed: %v", err)
	}
	if err := buildWatchCmd.ParseFlags([]string{"--changed"}); err == nil {
		t.Error("build watch accepted --changed")
	}
	buildChanged = false
}
