package ui

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/shibukawa/configdir"

	proccore "github.com/tinykern/proccore/go"
)

// Monitor is an interactive prompt for stepping a kernel and inspecting
// its processes.
type Monitor struct {
	k   *proccore.Kernel
	ctx *Context
	rl  *readline.Instance
}

type nullCloser struct{ io.Writer }

func (n *nullCloser) Close() error { return nil }

func NewMonitor(k *proccore.Kernel, color bool) (*Monitor, error) {
	// get history path
	configDirs := configdir.New("proccore", "monitor")
	cacheDir := configDirs.QueryCacheFolder()
	historyPath := ""
	if err := cacheDir.MkdirAll(); err == nil {
		historyPath = filepath.Join(cacheDir.Path, "history")
	}
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		HistoryFile:     historyPath,
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, err
	}
	// kernel output goes through readline so the prompt is redrawn
	k.Config.Output = &nullCloser{rl.Stderr()}
	m := &Monitor{k: k, rl: rl, ctx: NewContext(rl.Stdout(), k, color)}
	return m, nil
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(Commands))
	for name := range Commands {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func (m *Monitor) setPrompt() {
	k := m.k
	switch p := k.Sched.Current(); {
	case k.Halted():
		m.rl.SetPrompt("[halted]> ")
	case p == nil:
		m.rl.SetPrompt(fmt.Sprintf("[idle %d]> ", k.Sched.Ticks))
	default:
		m.rl.SetPrompt(fmt.Sprintf("[%d %s]> ", p.Pid, p.Name))
	}
}

// Run reads commands until quit or end of input.
func (m *Monitor) Run() error {
	defer m.rl.Close()
	m.ctx.where()
	for {
		m.setPrompt()
		line, err := m.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if !m.ctx.Exec(line) {
			return nil
		}
	}
}
