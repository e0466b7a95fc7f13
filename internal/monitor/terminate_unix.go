//go:build !windows

package monitor

import (
	"os/exec"
	"syscall"
	"time"
)

// prepare 让子进程独立成组，终止时连同其子进程一起结束
func prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate 先发送 SIGTERM，超过宽限期仍未退出则 SIGKILL
func terminate(p *Process) {
	pid := p.pid
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	go func() {
		select {
		case <-p.done:
		case <-time.After(p.grace):
			_ = syscall.Kill(-pid, syscall.SIGKILL)
		}
	}()
}
