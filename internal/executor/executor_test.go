package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/wtcops/resyncd/internal/appconf"
	"github.com/wtcops/resyncd/internal/runner"
	"github.com/wtcops/resyncd/internal/task"
	test_utils "github.com/wtcops/resyncd/internal/testing"
	"github.com/wtcops/resyncd/internal/version"
)

// fakeRunner records the executed commands. Commands are matched
// by their names.
type fakeRunner struct {
	mu    sync.Mutex
	calls []*runner.Command

	failed   map[string]bool
	broken   map[string]bool
	panicked map[string]bool
}

func (r *fakeRunner) Run(_ context.Context, cmd *runner.Command, onLine func(runner.Line)) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	switch {
	case r.panicked[cmd.Name]:
		panic("runner exploded")
	case r.broken[cmd.Name]:
		return -1, errors.New("fork/exec /bin/bash: no such file or directory")
	case r.failed[cmd.Name]:
		onLine(runner.Line{Stream: runner.Stderr, Text: "something went wrong"})
		return 1, nil
	}

	onLine(runner.Line{Stream: runner.Stdout, Text: "ok: " + cmd.Name})

	return 0, nil
}

func (r *fakeRunner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.calls))

	for _, c := range r.calls {
		names = append(names, c.Name)
	}

	return names
}

func newTestExecutor(r runner.Runner) (*Executor, *task.Manager) {
	conf := appconf.Config{
		Tasks: appconf.TasksParams{
			MaxRecords:    10,
			VersionOffset: 2,
			Project:       "wtc",
		},
		Paths: appconf.PathsParams{
			Home:  "/home/res",
			Match: "/opt/match",
			Nginx: "/var/nginx",
		},
	}

	m := task.NewManager(conf.Tasks.MaxRecords)

	return New(m, r, &conf, nil), m
}

// executeSync creates a task, subscribes to it and executes it
// in the current goroutine.
func executeSync(e *Executor, m *task.Manager, kind task.Kind, params task.Params) (*task.Record, []task.Event) {
	args, err := e.Validate(kind, params)
	if err != nil {
		panic(err)
	}

	id := m.CreateTask(kind, args.Params(kind))

	var mu sync.Mutex
	var events []task.Event

	m.Subscribe(id, func(ev task.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	e.Execute(id)

	rec, _ := m.GetTask(id)

	return rec, events
}

func progressOf(events []task.Event) []int {
	values := make([]int, 0)

	for _, ev := range events {
		if ev.Type == task.EventUpdate && (len(values) == 0 || values[len(values)-1] != ev.Task.Progress) {
			values = append(values, ev.Task.Progress)
		}
	}

	return values
}

func hasLog(rec *task.Record, level task.Level, prefix string) bool {
	for _, entry := range rec.Logs {
		if entry.Level == level && strings.HasPrefix(entry.Message, prefix) {
			return true
		}
	}

	return false
}

func TestCheckIntegritySoftFail(t *testing.T) {
	r := fakeRunner{failed: map[string]bool{"Check Android resources": true}}

	e, m := newTestExecutor(&r)

	rec, events := executeSync(e, m, task.KindCheckIntegrity, task.Params{"version": "v885"})

	if rec.Status != task.StatusCompleted {
		t.Fatal(test_utils.FormatResultString(task.StatusCompleted, rec.Status))
	}

	// Step 1 of 3 is reported as 33%
	if got := progressOf(events); len(got) != 4 || got[1] != 33 || got[2] != 67 || got[3] != 100 {
		t.Fatal(test_utils.FormatResultString([]int{0, 33, 67, 100}, got, "progress"))
	}

	rep, ok := rec.Result.(*Report)
	if !ok {
		t.Fatalf("unexpected result type: %T", rec.Result)
	}

	if rep.Success {
		t.Fatal(test_utils.FormatResultString(false, rep.Success, "aggregate"))
	}

	if len(rep.Results) != 3 {
		t.Fatal(test_utils.FormatResultString(3, len(rep.Results), "results"))
	}

	for idx, want := range []bool{true, false, true} {
		if rep.Results[idx].Success != want {
			t.Fatal(test_utils.FormatResultString(want, rep.Results[idx].Success, rep.Results[idx].Name))
		}
	}

	if rep.Results[1].ExitCode != 1 || rep.Results[1].Stderr != "something went wrong" {
		t.Fatalf("unexpected result of the failed command: %+v", rep.Results[1])
	}

	calls := r.calls

	wantLine := "/opt/match/match -seed /home/res/wtc/assets_config/common_ios/project.manifest -root /home/res/wtc/v885/res_oldvegas/"
	if calls[0].Line != wantLine {
		t.Fatal(test_utils.FormatResultString(wantLine, calls[0].Line))
	}

	if calls[2].Dir != "/opt/match" || calls[2].Line != "bash match_version.sh wtc v885" {
		t.Fatalf("unexpected match_version command: %+v", calls[2])
	}

	if !hasLog(rec, task.LevelInfo, "Step 2/3: Check Android resources") {
		t.Fatal("no step log found")
	}

	if !hasLog(rec, task.LevelStderr, "something went wrong") {
		t.Fatal("stderr line is not forwarded to the task log")
	}
}

func TestSyncCommands(t *testing.T) {
	tests := []struct {
		kind task.Kind
		line string
	}{
		{task.KindSyncFacebook, "sh pubfbclient.sh wtc v885"},
		{task.KindSyncNative, "sh pubclient.sh wtc v885"},
	}

	for _, tc := range tests {
		r := fakeRunner{}

		e, m := newTestExecutor(&r)

		rec, _ := executeSync(e, m, tc.kind, task.Params{"version": "v885"})

		if rec.Status != task.StatusCompleted || !rec.Result.(*Report).Success {
			t.Fatalf("unexpected %s outcome: %s, %+v", tc.kind, rec.Status, rec.Result)
		}

		if len(r.calls) != 1 || r.calls[0].Line != tc.line || r.calls[0].Dir != "/var/nginx" {
			t.Fatalf("unexpected %s command: %+v", tc.kind, r.calls)
		}

		if !hasLog(rec, task.LevelInfo, "Executing: cd /var/nginx && "+tc.line) {
			t.Fatal("no 'Executing' log found")
		}

		if !hasLog(rec, task.LevelSuccess, "Process exited with code 0") {
			t.Fatal("no exit log found")
		}
	}
}

func TestUpdateReuseHardFail(t *testing.T) {
	r := fakeRunner{failed: map[string]bool{"Move wtc version to reuse": true}}

	e, m := newTestExecutor(&r)

	rec, _ := executeSync(e, m, task.KindUpdateReuse, task.Params{"version": "v885"})

	if rec.Status != task.StatusCompleted {
		t.Fatal(test_utils.FormatResultString(task.StatusCompleted, rec.Status))
	}

	rep := rec.Result.(*Report)

	if rep.Success || len(rep.Results) != 1 {
		t.Fatalf("unexpected report: success=%t, results=%d", rep.Success, len(rep.Results))
	}

	if len(r.calls) != 1 {
		t.Fatal(test_utils.FormatResultString(1, len(r.calls), "calls"))
	}

	if rep.NginxReuseVersion != "v883" {
		t.Fatal(test_utils.FormatResultString("v883", rep.NginxReuseVersion))
	}
}

func TestUpdateReuseCommands(t *testing.T) {
	tests := []struct {
		params   task.Params
		nginxVer string
	}{
		{task.Params{"version": "v885"}, "v883"},
		{task.Params{"version": "v885", "nginxReuseVersion": "v880"}, "v880"},
	}

	for _, tc := range tests {
		r := fakeRunner{}

		e, m := newTestExecutor(&r)

		rec, _ := executeSync(e, m, task.KindUpdateReuse, tc.params)

		if !rec.Result.(*Report).Success {
			t.Fatal("update-reuse failed")
		}

		want := []runner.Command{
			{Line: "mv v885 reuse_version", Dir: "/home/res/wtc"},
			{Line: "mv v885 reuse_version", Dir: "/home/res/wtc_fb"},
			{Line: "mv " + tc.nginxVer + " reuse_version", Dir: "/var/nginx/wtc"},
			{Line: "mv " + tc.nginxVer + " reuse_version", Dir: "/var/nginx/wtc_fb"},
		}

		if len(r.calls) != len(want) {
			t.Fatal(test_utils.FormatResultString(len(want), len(r.calls), "calls"))
		}

		for idx := range want {
			if r.calls[idx].Line != want[idx].Line || r.calls[idx].Dir != want[idx].Dir {
				t.Fatal(test_utils.FormatResultString(want[idx], *r.calls[idx], r.calls[idx].Name))
			}
		}

		if _, ok := tc.params["nginxReuseVersion"]; !ok {
			if _, found := rec.Params["nginxReuseVersion"]; found {
				t.Fatal("derived version must not be stored in params")
			}
		}
	}
}

func TestFullSync(t *testing.T) {
	r := fakeRunner{}

	e, m := newTestExecutor(&r)

	rec, events := executeSync(e, m, task.KindFullSync, task.Params{"version": "v885"})

	if rec.Status != task.StatusCompleted || rec.Progress != 100 {
		t.Fatalf("unexpected outcome: %s, %d", rec.Status, rec.Progress)
	}

	rep := rec.Result.(*PipelineReport)

	steps := make([]task.Kind, 0, len(rep.Results))
	for _, s := range rep.Results {
		steps = append(steps, s.Step)
	}

	wantSteps := []task.Kind{task.KindCheckIntegrity, task.KindSyncFacebook, task.KindSyncNative}

	if strings.Join(kindStrings(steps), ",") != strings.Join(kindStrings(wantSteps), ",") {
		t.Fatal(test_utils.FormatResultString(wantSteps, steps))
	}

	if got := progressOf(events); len(got) != 5 || got[1] != 10 || got[2] != 40 || got[3] != 70 || got[4] != 100 {
		t.Fatal(test_utils.FormatResultString([]int{0, 10, 40, 70, 100}, got, "progress"))
	}

	if len(r.calls) != 5 {
		t.Fatal(test_utils.FormatResultString(5, len(r.calls), "calls"))
	}
}

func TestFullSyncSkipCheck(t *testing.T) {
	r := fakeRunner{}

	e, m := newTestExecutor(&r)

	rec, events := executeSync(e, m, task.KindFullSync, task.Params{"version": "v885", "skipCheck": true})

	if rec.Status != task.StatusCompleted {
		t.Fatal(test_utils.FormatResultString(task.StatusCompleted, rec.Status))
	}

	if got := progressOf(events); len(got) != 4 || got[1] != 40 || got[2] != 70 || got[3] != 100 {
		t.Fatal(test_utils.FormatResultString([]int{0, 40, 70, 100}, got, "progress"))
	}

	for _, name := range r.names() {
		if strings.HasPrefix(name, "Check ") || name == "Match version" {
			t.Fatalf("integrity command must not be executed: %s", name)
		}
	}

	for _, entry := range rec.Logs {
		if strings.Contains(strings.ToLower(entry.Message), "integrity") {
			t.Fatalf("integrity check is mentioned in the task log though skipped: %q", entry.Message)
		}
	}

	if len(rec.Result.(*PipelineReport).Results) != 2 {
		t.Fatal("two stages expected")
	}
}

func TestFullSyncFailures(t *testing.T) {
	tests := []struct {
		failed    string
		reason    error
		wantCalls int
	}{
		{"Match version", ErrIntegrityCheckFailed, 3},
		{"Sync Facebook resources", ErrFacebookSyncFailed, 4},
		{"Sync Native resources", ErrNativeSyncFailed, 5},
	}

	for _, tc := range tests {
		r := fakeRunner{failed: map[string]bool{tc.failed: true}}

		e, m := newTestExecutor(&r)

		rec, _ := executeSync(e, m, task.KindFullSync, task.Params{"version": "v885"})

		if rec.Status != task.StatusFailed {
			t.Fatal(test_utils.FormatResultString(task.StatusFailed, rec.Status, tc.failed))
		}

		if rec.Error != tc.reason.Error() {
			t.Fatal(test_utils.FormatResultString(tc.reason.Error(), rec.Error, tc.failed))
		}

		if rec.Result != nil {
			t.Fatalf("failed task has a result: %+v", rec.Result)
		}

		if len(r.calls) != tc.wantCalls {
			t.Fatal(test_utils.FormatResultString(tc.wantCalls, len(r.calls), tc.failed))
		}
	}
}

func TestLaunchFailure(t *testing.T) {
	r := fakeRunner{broken: map[string]bool{"Sync Native resources": true}}

	e, m := newTestExecutor(&r)

	rec, _ := executeSync(e, m, task.KindSyncNative, task.Params{"version": "v885"})

	if rec.Status != task.StatusCompleted {
		t.Fatal(test_utils.FormatResultString(task.StatusCompleted, rec.Status))
	}

	res := rec.Result.(*Report).Results[0]

	if res.Success || !strings.Contains(res.Stderr, "no such file or directory") {
		t.Fatalf("unexpected result: %+v", res)
	}

	if !hasLog(rec, task.LevelError, "Execution error: ") {
		t.Fatal("no execution error log found")
	}
}

func TestPanicRecovery(t *testing.T) {
	r := fakeRunner{panicked: map[string]bool{"Sync Facebook resources": true}}

	e, m := newTestExecutor(&r)

	rec, _ := executeSync(e, m, task.KindSyncFacebook, task.Params{"version": "v885"})

	if rec.Status != task.StatusFailed {
		t.Fatal(test_utils.FormatResultString(task.StatusFailed, rec.Status))
	}

	if !strings.Contains(rec.Error, "runner exploded") {
		t.Fatal(test_utils.FormatResultString("unexpected error: runner exploded", rec.Error))
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		kind   task.Kind
		params task.Params
		target error
	}{
		{task.KindSyncNative, task.Params{}, nil},
		{task.KindSyncNative, task.Params{"version": "   "}, nil},
		{task.KindSyncNative, task.Params{"version": 885}, nil},
		{task.KindSyncNative, task.Params{"version": "v-885"}, version.ErrInvalidFormat},
		{task.KindUpdateReuse, task.Params{"version": "v1"}, version.ErrNegativeResult},
		{task.KindUpdateReuse, task.Params{"version": "v885", "nginxReuseVersion": "latest!"}, version.ErrInvalidFormat},
		{task.KindFullSync, task.Params{"version": "v885", "skipCheck": "yes"}, nil},
	}

	r := fakeRunner{}

	e, m := newTestExecutor(&r)

	for idx, tc := range tests {
		_, err := e.Submit(tc.kind, tc.params)

		if !IsValidationError(err) {
			t.Fatalf("case %d: validation error expected, got %v", idx, err)
		}

		if tc.target != nil && !errors.Is(err, tc.target) {
			t.Fatal(test_utils.FormatResultString(tc.target, err))
		}
	}

	if _, err := e.Submit("deploy-all", task.Params{"version": "v885"}); !errors.Is(err, ErrUnknownKind) {
		t.Fatal(test_utils.FormatResultString(ErrUnknownKind, err))
	}

	if n := len(m.ListTasks()); n != 0 {
		t.Fatal(test_utils.FormatResultString(0, n, "created tasks"))
	}

	if len(r.calls) != 0 {
		t.Fatal("no commands expected")
	}
}

func TestSubmitAndClose(t *testing.T) {
	r := fakeRunner{}

	e, m := newTestExecutor(&r)

	ids := make([]string, 0, 5)

	for i := 0; i < 5; i++ {
		id, err := e.Submit(task.KindSyncNative, task.Params{"version": "v885"})
		if err != nil {
			t.Fatalf("got unexpected error:\nerror:\t%v", err)
		}

		ids = append(ids, id)
	}

	e.WaitAndClose()

	if n := e.Running(); n != 0 {
		t.Fatal(test_utils.FormatResultString(0, n, "running"))
	}

	for _, id := range ids {
		if rec, ok := m.GetTask(id); !ok || rec.Status != task.StatusCompleted {
			t.Fatalf("task %s is not completed", id)
		}
	}

	if _, err := e.Submit(task.KindSyncNative, task.Params{"version": "v885"}); !errors.Is(err, ErrExecutorClosed) {
		t.Fatal(test_utils.FormatResultString(ErrExecutorClosed, err))
	}
}

func kindStrings(kinds []task.Kind) []string {
	ss := make([]string, 0, len(kinds))

	for _, k := range kinds {
		ss = append(ss, string(k))
	}

	return ss
}
