package cmd

import "testing"

func TestWatchCommandRegisteredUnderRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c == watchCmd {
			found = true
			break
		}
	}
	if !found {
		t.Error("watchCmd should be registered under rootCmd")
	}
}

func TestWatchCommandRequiresExactlyOneArg(t *testing.T) {
	if err := watchCmd.Args(watchCmd, nil); err == nil {
		t.Error("expected an error with zero args")
	}
	if err := watchCmd.Args(watchCmd, []string{"a", "b"}); err == nil {
		t.Error("expected an error with two args")
	}
	if err := watchCmd.Args(watchCmd, []string{"a"}); err != nil {
		t.Errorf("expected no error with one arg, got %v", err)
	}
}

func TestWatchCommandDefaultFlags(t *testing.T) {
	cases := map[string]string{
		"frequency":   "0",
		"run-timeout": "0",
		"dbg":         "false",
		"interpreter": "python3",
		"workers":     "8",
		"fast-wake":   "true",
	}
	for name, want := range cases {
		f := watchCmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("flag %q not registered", name)
		}
		if f.DefValue != want {
			t.Errorf("flag %q default = %q, want %q", name, f.DefValue, want)
		}
	}
}
