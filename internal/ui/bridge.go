package ui

import (
	"context"
	"slices"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/shelf/internal/cache"
	"github.com/five82/shelf/internal/logtail"
	"github.com/five82/shelf/internal/lookup"
	"github.com/five82/shelf/internal/mutation"
)

const logTailLines = 400

type tickMsg time.Time

type changeMsg struct{ keys []string }

type fetchedMsg struct {
	key string
	err error
}

type lookupMsg lookup.Result

type mutationMsg mutation.Result

type refreshedMsg struct{ err error }

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// changeFeed collects changed cache keys between reads. Each key is held at
// most once, so a burst on one key never hides a change on another.
type changeFeed struct {
	mu      sync.Mutex
	pending []string
	signal  chan struct{}
}

func (f *changeFeed) push(key string) {
	f.mu.Lock()
	if !slices.Contains(f.pending, key) {
		f.pending = append(f.pending, key)
	}
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// drain returns the pending keys in first-changed order and resets the set.
func (f *changeFeed) drain() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := f.pending
	f.pending = nil
	return keys
}

// subscribe turns cache listeners into a feed the program can wait on.
// Listeners never block.
func subscribe(store Core, keys ...string) (*changeFeed, func()) {
	feed := &changeFeed{signal: make(chan struct{}, 1)}
	unsubs := make([]func(), 0, len(keys))
	for _, k := range keys {
		unsubs = append(unsubs, store.Subscribe(k, func(e cache.Entry) {
			feed.push(e.Key)
		}))
	}
	return feed, func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func waitForChange(feed *changeFeed) tea.Cmd {
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			<-feed.signal
			if keys := feed.drain(); len(keys) > 0 {
				return changeMsg{keys: keys}
			}
		}
	}
}

func waitForLookup(ch <-chan lookup.Result) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return lookupMsg(r)
	}
}

// ensureFreshCmd re-reads key when a change left it stale or never loaded.
// Loading and error entries are left alone so a failing fetch is not retried
// in a tight loop; the poller and manual refresh own retries.
func (m Model) ensureFreshCmd(key string) tea.Cmd {
	if m.store == nil {
		return nil
	}
	status := m.statusOf(key)
	if status != cache.StatusStale && status != cache.StatusIdle {
		return nil
	}
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		_, err := store.EnsureFresh(ctx, key)
		return fetchedMsg{key: key, err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	if m.store == nil {
		return nil
	}
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		return refreshedMsg{err: store.Refresh(ctx)}
	}
}

func (m Model) mutateCmd(req mutation.Request) tea.Cmd {
	if m.store == nil {
		return nil
	}
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		return mutationMsg(store.Mutate(ctx, req))
	}
}

func (m Model) readLogsCmd() tea.Cmd {
	path := m.logPath
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done := make(chan logsMsg, 1)
		go func() {
			entries, err := logtail.ReadEntries(path, logTailLines)
			done <- logsMsg{entries: entries, err: err}
		}()
		select {
		case msg := <-done:
			return msg
		case <-ctx.Done():
			return logsMsg{err: ctx.Err()}
		}
	}
}
