//go:build windows

package monitor

import (
	"os/exec"
	"strconv"
	"syscall"
)

func prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}

// terminate 用 taskkill 结束整个进程树
func terminate(p *Process) {
	go func() {
		kill := exec.Command("taskkill", "/pid", strconv.Itoa(p.pid), "/T", "/F")
		kill.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
		_ = kill.Run()
	}()
}
