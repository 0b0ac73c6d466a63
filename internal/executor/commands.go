package executor

import (
	"fmt"
	"path/filepath"

	"github.com/wtcops/resyncd/internal/runner"
)

func (e *Executor) integrityCommands(ver string) []*runner.Command {
	root := filepath.Join(e.paths.Home, e.project)

	manifest := func(platform string) string {
		return filepath.Join(root, "assets_config", "common_"+platform, "project.manifest")
	}

	resources := filepath.Join(root, ver, "res_oldvegas") + "/"

	matchBin := filepath.Join(e.paths.Match, "match")

	return []*runner.Command{
		{
			Name: "Check iOS resources",
			Line: fmt.Sprintf("%s -seed %s -root %s", matchBin, manifest("ios"), resources),
		},
		{
			Name: "Check Android resources",
			Line: fmt.Sprintf("%s -seed %s -root %s", matchBin, manifest("android"), resources),
		},
		{
			Name: "Match version",
			Line: fmt.Sprintf("bash match_version.sh %s %s", e.project, ver),
			Dir:  e.paths.Match,
		},
	}
}

func (e *Executor) syncFacebookCommand(ver string) *runner.Command {
	return &runner.Command{
		Name: "Sync Facebook resources",
		Line: fmt.Sprintf("sh pubfbclient.sh %s %s", e.project, ver),
		Dir:  e.paths.Nginx,
	}
}

func (e *Executor) syncNativeCommand(ver string) *runner.Command {
	return &runner.Command{
		Name: "Sync Native resources",
		Line: fmt.Sprintf("sh pubclient.sh %s %s", e.project, ver),
		Dir:  e.paths.Nginx,
	}
}

// reuseCommands returns the directory moves of update-reuse. The order
// matters: the home trees are moved before the nginx ones.
func (e *Executor) reuseCommands(ver, nginxVer string) []*runner.Command {
	move := func(name, dir, src string) *runner.Command {
		return &runner.Command{
			Name: name,
			Line: fmt.Sprintf("mv %s reuse_version", src),
			Dir:  dir,
		}
	}

	return []*runner.Command{
		move(fmt.Sprintf("Move %s version to reuse", e.project), filepath.Join(e.paths.Home, e.project), ver),
		move(fmt.Sprintf("Move %s_fb version to reuse", e.project), filepath.Join(e.paths.Home, e.project+"_fb"), ver),
		move(fmt.Sprintf("Move nginx %s to reuse", e.project), filepath.Join(e.paths.Nginx, e.project), nginxVer),
		move(fmt.Sprintf("Move nginx %s_fb to reuse", e.project), filepath.Join(e.paths.Nginx, e.project+"_fb"), nginxVer),
	}
}
