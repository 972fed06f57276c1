package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"comfyctl/internal/stream"
)

// barObserver renders the running node's step counter as a terminal
// progress bar. One bar is reused for every node of every prompt.
type barObserver struct {
	stream.NopObserver
	out  io.Writer
	bar  *progressbar.ProgressBar
	max  int
	node string
}

func newBarObserver(out io.Writer) *barObserver {
	return &barObserver{out: out}
}

func (b *barObserver) ensureBar(max int) {
	if max <= 0 {
		max = 1
	}
	if b.bar == nil {
		b.bar = progressbar.NewOptions(max,
			progressbar.OptionSetWriter(b.out),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionThrottle(50*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		b.max = max
		return
	}
	if max != b.max {
		b.bar.ChangeMax(max)
		b.max = max
	}
}

func (b *barObserver) PromptStarted(promptID string) {
	b.clear()
	fmt.Fprintf(b.out, "Tracking prompt %s\n", promptID)
}

func (b *barObserver) NodeExecuting(_, nodeID, class string) {
	b.node = nodeLabel(nodeID, class)
	if b.bar != nil {
		b.bar.Reset()
		b.bar.Describe(b.node)
	}
}

func (b *barObserver) Progress(p stream.Progress) {
	b.ensureBar(p.Max)
	label := nodeLabel(p.Node, "")
	if b.node != "" {
		label = b.node
	}
	b.bar.Describe(label)
	_ = b.bar.Set(p.Value)
}

func (b *barObserver) PromptFailed(e stream.ExecutionError) {
	b.clear()
	fmt.Fprintf(b.out, "Node %s failed: %s\n", nodeLabel(e.NodeID, e.NodeType), e.ExceptionMessage)
}

func (b *barObserver) Finished(r stream.Result) {
	b.clear()
	fmt.Fprintf(b.out, "Tracking ended: %s\n", statusLabel(string(r.Reason)))
}

func (b *barObserver) clear() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	_ = b.bar.Clear()
	b.bar = nil
	b.max = 0
}

func nodeLabel(nodeID, class string) string {
	if class == "" {
		return "node " + nodeID
	}
	return fmt.Sprintf("node %s (%s)", nodeID, class)
}
