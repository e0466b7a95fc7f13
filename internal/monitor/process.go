package monitor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrExecutableNotFound  = errors.New("tab monitor executable not found")
)

// Hooks 子进程输出与退出回调
type Hooks struct {
	Stdout func(chunk []byte)
	Stderr func(chunk []byte)
	Exit   func(code int, err error)
}

// Handle 已启动的监控子进程
type Handle interface {
	Pid() int
	Stop()
	Done() <-chan struct{}
}

// Command 解析出的启动命令
type Command struct {
	Path string
	Args []string
}

// Launcher 定位并启动平台对应的标签页监控程序
type Launcher struct {
	BinDir      string
	ScriptPath  string
	Interpreter string
	DevToolsURL string
	Interval    time.Duration
	GOOS        string
	Env         []string
	Args        []string
	Grace       time.Duration
	LookPath    func(file string) (string, error)
}

// binaryName 各平台的预编译监控程序名
func binaryName(goos string) (string, error) {
	switch goos {
	case "windows":
		return "tab-monitor-win.exe", nil
	case "darwin":
		return "tab-monitor-mac", nil
	case "linux":
		return "tab-monitor-linux", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

func (l *Launcher) goos() string {
	if l.GOOS != "" {
		return l.GOOS
	}
	return runtime.GOOS
}

func (l *Launcher) lookPath(file string) (string, error) {
	if l.LookPath != nil {
		return l.LookPath(file)
	}
	return exec.LookPath(file)
}

// Resolve 优先使用预编译程序，不存在时回退到解释器加脚本
func (l *Launcher) Resolve() (Command, error) {
	goos := l.goos()
	name, err := binaryName(goos)
	if err != nil {
		return Command{}, err
	}
	bin := filepath.Join(l.BinDir, name)
	if fi, err := os.Stat(bin); err == nil && !fi.IsDir() {
		return Command{Path: bin}, nil
	}

	if l.ScriptPath == "" {
		return Command{}, fmt.Errorf("%w: %s", ErrExecutableNotFound, bin)
	}
	if _, err := os.Stat(l.ScriptPath); err != nil {
		return Command{}, fmt.Errorf("%w: %s and %s", ErrExecutableNotFound, bin, l.ScriptPath)
	}

	candidates := []string{l.Interpreter}
	if l.Interpreter == "" {
		if goos == "windows" {
			candidates = []string{"python", "py"}
		} else {
			candidates = []string{"python3", "python"}
		}
	}
	for _, c := range candidates {
		if p, err := l.lookPath(c); err == nil {
			return Command{Path: p, Args: []string{l.ScriptPath}}, nil
		}
	}
	return Command{}, fmt.Errorf("%w: no interpreter for %s", ErrExecutableNotFound, l.ScriptPath)
}

// Start 启动监控程序，输出按块回调，退出时先回调 Exit 再关闭 Done
func (l *Launcher) Start(h Hooks) (Handle, error) {
	c, err := l.Resolve()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(c.Path, append(c.Args, l.Args...)...)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	if l.DevToolsURL != "" {
		cmd.Env = append(cmd.Env, "TABSENTRY_DEVTOOLS_URL="+l.DevToolsURL)
	}
	if l.Interval > 0 {
		cmd.Env = append(cmd.Env, "TABSENTRY_POLL_INTERVAL="+l.Interval.String())
	}
	cmd.Env = append(cmd.Env, l.Env...)
	prepare(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Path, err)
	}

	grace := l.Grace
	if grace <= 0 {
		grace = 2 * time.Second
	}
	p := &Process{cmd: cmd, pid: cmd.Process.Pid, grace: grace, done: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(2)
	go pump(stdout, h.Stdout, &wg)
	go pump(stderr, h.Stderr, &wg)
	go func() {
		wg.Wait()
		werr := cmd.Wait()
		if h.Exit != nil {
			h.Exit(exitCode(werr), werr)
		}
		close(p.done)
	}()
	return p, nil
}

// pump 按块读取输出，回调前复制缓冲区
func pump(r io.Reader, fn func([]byte), wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 && fn != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			fn(chunk)
		}
		if err != nil {
			return
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// Process 监控子进程
type Process struct {
	cmd      *exec.Cmd
	pid      int
	grace    time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) Done() <-chan struct{} { return p.done }

// Stop 请求终止进程，不等待退出
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		terminate(p)
	})
}
