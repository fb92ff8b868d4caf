//go:build !windows

package doctor

import "os/exec"

func resetTerminal() {
	exec.Command("stty", "sane").Run()
}
