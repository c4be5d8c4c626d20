package main

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// scriptDataplane lets a testscript file invoke the CLI in-process as
// `dataplane <args...>`, the way scripttest callers wire their own
// binary's entrypoint into the script engine instead of shelling out
// to a built executable. The command's stdout is captured and handed to
// the script as its stdout; runs are serialized since they share rootCmd
// and os.Stdout.
func scriptDataplane() script.Cmd {
	var mu sync.Mutex
	return script.Command(
		script.CmdUsage{
			Summary: "run the dataplane CLI",
			Args:    "args...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			mu.Lock()
			defer mu.Unlock()
			r, w, err := os.Pipe()
			if err != nil {
				return nil, err
			}
			captured := make(chan []byte)
			go func() { b, _ := io.ReadAll(r); captured <- b }()
			realStdout := os.Stdout
			os.Stdout = w
			rootCmd.SetArgs(args)
			err = rootCmd.Execute()
			os.Stdout = realStdout
			w.Close()
			out := <-captured
			return func(*script.State) (string, string, error) {
				return string(out), "", err
			}, nil
		},
	)
}

func TestCLIScripts(t *testing.T) {
	engine := &script.Engine{
		Cmds:  scripttest.DefaultCmds(),
		Conds: scripttest.DefaultConds(),
	}
	engine.Cmds["dataplane"] = scriptDataplane()

	ctx := context.Background()
	env := []string{"HOME=" + t.TempDir()}
	scripttest.Test(t, ctx, engine, env, "testdata/script/*.txt")
}
