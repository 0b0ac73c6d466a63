package progress_bar

import (
	"context"
	"fmt"
	"sync"

	"github.com/gosuri/uiprogress"
	"github.com/gosuri/uiprogress/util/strutil"
	"golang.org/x/sync/errgroup"
)

// Failed marks the bar as failed. Later values for this bar are dropped.
const Failed = -1

const (
	barWidth = 40

	// Enough for a short task ID
	labelWidth = 8
)

// Poller feeds the bars with progress values until the work is done.
// The update function blocks until the value is taken by the bar.
type Poller func(ctx context.Context, update func(name string, p int)) error

type ProgressBar struct {
	mu sync.Mutex

	names  []string
	poller Poller

	err error
}

func NewProgressBar(poller Poller, names ...string) *ProgressBar {
	return &ProgressBar{
		poller: poller,
		names:  names,
	}
}

// Show renders one bar per name until the poller returns.
func (b *ProgressBar) Show() {
	progress := uiprogress.New()

	feeds := make(map[string]chan int, len(b.names))
	views := make([]*barView, 0, len(b.names))

	// All bars are added before rendering starts, so they keep the given order
	for _, name := range b.names {
		views = append(views, newBarView(progress, name))
		feeds[name] = make(chan int)
	}

	update := func(name string, p int) {
		if feed, ok := feeds[name]; ok {
			feed <- p
		}
	}

	progress.Start()

	group, ctx := errgroup.WithContext(context.Background())

	for _, v := range views {
		feed := feeds[v.name]

		group.Go(func() error {
			v.follow(feed)

			return nil
		})
	}

	group.Go(func() error {
		defer func() {
			for _, feed := range feeds {
				close(feed)
			}
		}()

		return b.poller(ctx, update)
	})

	err := group.Wait()

	progress.Stop()
	fmt.Println()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.err = err
}

func (b *ProgressBar) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.err
}

type barView struct {
	mu sync.Mutex

	name  string
	state string
	bar   *uiprogress.Bar
}

func newBarView(progress *uiprogress.Progress, name string) *barView {
	v := barView{
		name:  name,
		state: "queued",
	}

	label := name
	if len(label) > labelWidth {
		label = label[:labelWidth]
	}

	v.bar = progress.AddBar(100).AppendCompleted().AppendElapsed()
	v.bar.Width = barWidth

	v.bar.PrependFunc(func(*uiprogress.Bar) string {
		return strutil.Resize(label+" "+v.getState(), labelWidth+8)
	})

	return &v
}

func (v *barView) getState() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.state
}

func (v *barView) setState(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = s
}

func (v *barView) follow(feed <-chan int) {
	for p := range feed {
		if p == Failed {
			v.setState("FAILED")

			// The poller must never block on a failed bar
			for range feed {
			}

			return
		}

		switch {
		case p >= 100:
			v.setState("done")
			p = 100
		case p > 0:
			v.setState("syncing")
		}

		v.bar.Set(p)
	}
}
